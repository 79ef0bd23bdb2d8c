package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"heartrisk/ml"
)

//go:embed templates/*.html static/*
var assets embed.FS

var supportedLanguages = []language.Tag{language.English, language.German, language.French}

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type fieldView struct {
	fieldSpec
	Value      string
	Error      string
	OptionList []optionView
}

type resultView struct {
	High bool
	// Probability is the formatted percentage, empty when the model is label-only.
	Probability string
}

type pageData struct {
	Lang    string
	Token   string
	Columns [2][]fieldView
	Notice  string
	Result  *resultView
	Failed  bool
}

// Renderer 页面渲染器
type Renderer struct {
	page    *template.Template
	matcher language.Matcher
}

// NewRenderer 创建渲染器，defaultLanguage 在 Accept-Language 缺失或无法匹配时使用
func NewRenderer(defaultLanguage string) (*Renderer, error) {
	page, err := template.ParseFS(assets, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	tags := supportedLanguages
	if defaultLanguage != "" {
		def, err := language.Parse(defaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("invalid default language %q: %w", defaultLanguage, err)
		}
		tags = []language.Tag{def}
		for _, tag := range supportedLanguages {
			if tag != def {
				tags = append(tags, tag)
			}
		}
	}

	return &Renderer{page: page, matcher: language.NewMatcher(tags)}, nil
}

func (rd *Renderer) staticFiles() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (rd *Renderer) language(r *http.Request) language.Tag {
	tags, _, _ := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	tag, _, _ := rd.matcher.Match(tags...)
	return tag
}

// formatProbability 按请求语言格式化百分比，保留一位小数
func formatProbability(tag language.Tag, percent float64) string {
	return message.NewPrinter(tag).Sprintf("%.1f%%", percent)
}

func newResultView(tag language.Tag, prediction ml.Prediction) *resultView {
	view := &resultView{High: prediction.Label == ml.HighRisk}
	if percent, ok := prediction.DisplayProbability(); ok {
		view.Probability = formatProbability(tag, percent)
	}
	return view
}

func newPage(tag language.Tag, token string, values, fieldErrors map[string]string) pageData {
	base, _ := tag.Base()
	data := pageData{Lang: base.String(), Token: token}
	for _, field := range formFields {
		view := fieldView{fieldSpec: field, Value: values[field.Name], Error: fieldErrors[field.Name]}
		for _, opt := range field.Options {
			view.OptionList = append(view.OptionList, optionView{
				Value:    opt.Value,
				Label:    opt.Label,
				Selected: opt.Value == view.Value,
			})
		}
		data.Columns[field.Column] = append(data.Columns[field.Column], view)
	}
	if msg, ok := fieldErrors["form"]; ok {
		data.Notice = msg
	}
	return data
}

// render 渲染完整页面，先写入缓冲区以便模板出错时仍能返回500
func (rd *Renderer) render(w http.ResponseWriter, status int, data pageData) error {
	var buf bytes.Buffer
	if err := rd.page.Execute(&buf, data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return fmt.Errorf("render page: %w", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
