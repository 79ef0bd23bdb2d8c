package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mdobak/go-xerrors"
	"go.uber.org/zap"

	"heartrisk/ml"
	"heartrisk/monitoring"
)

const noticeUnreadable = "The form could not be read, please submit again."

// Handler 页面与API处理器。model 在启动时加载一次，之后只读共享
type Handler struct {
	model    *ml.Model
	logger   *zap.Logger
	metrics  *monitoring.MetricsCollector
	tokens   *FormTokens
	renderer *Renderer
}

// NewHandler 创建处理器
func NewHandler(model *ml.Model, logger *zap.Logger, metrics *monitoring.MetricsCollector, config ServerConfig) (*Handler, error) {
	renderer, err := NewRenderer(config.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	tokens, err := NewFormTokens(config.FormTokenCapacity)
	if err != nil {
		return nil, err
	}
	return &Handler{
		model:    model,
		logger:   logger,
		metrics:  metrics,
		tokens:   tokens,
		renderer: renderer,
	}, nil
}

// Register 注册所有路由
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.Handle("GET /static/", h.renderer.staticFiles())
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	tag := h.renderer.language(r)
	page := newPage(tag, h.tokens.Issue(), defaultFormValues(), nil)
	h.writePage(w, r, http.StatusOK, page)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	tag := h.renderer.language(r)

	if err := r.ParseForm(); err != nil {
		page := newPage(tag, h.tokens.Issue(), defaultFormValues(), nil)
		page.Notice = noticeUnreadable
		h.writePage(w, r, http.StatusBadRequest, page)
		return
	}

	values := submittedValues(r.PostForm)
	// 未知令牌（重启或被淘汰）不阻止预测，只重新签发
	token := r.PostForm.Get("token")
	if !h.tokens.Valid(token) {
		h.metrics.IncCounter("form_tokens_reissued_total", nil)
		token = h.tokens.Issue()
	}

	features, fieldErrors := decodePatientForm(r.PostForm)
	if len(fieldErrors) > 0 {
		h.writePage(w, r, http.StatusUnprocessableEntity, newPage(tag, token, values, fieldErrors))
		return
	}

	page := newPage(tag, token, values, nil)

	start := time.Now()
	prediction, err := ml.Infer(r.Context(), h.model, features)
	h.metrics.ObserveDuration("prediction_latency_ms", time.Since(start))
	if err != nil {
		err = xerrors.New(err)
		h.logger.Error("inference failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("model", h.model.Name()),
			zap.Error(err))
		h.metrics.IncCounter("prediction_failures_total", nil)
		page.Failed = true
		h.writePage(w, r, http.StatusInternalServerError, page)
		return
	}

	h.metrics.IncCounter("predictions_total", map[string]string{"label": prediction.Label.String()})
	page.Result = newResultView(tag, prediction)
	h.writePage(w, r, http.StatusOK, page)
}

// renderFailure 通用失败页，供恢复中间件使用
func (h *Handler) renderFailure(w http.ResponseWriter, r *http.Request) {
	page := newPage(h.renderer.language(r), h.tokens.Issue(), defaultFormValues(), nil)
	page.Failed = true
	h.writePage(w, r, http.StatusInternalServerError, page)
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, status int, page pageData) {
	if err := h.renderer.render(w, status, page); err != nil {
		h.logger.Error("write page failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":      "ok",
		"model":       h.model.Name(),
		"probability": h.model.SupportsProbability(),
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.metrics.Snapshot())
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
