package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

const maxHistory = 1000

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	metrics     map[string][]*Metric
	counters    map[string]*Metric
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string][]*Metric),
		counters:  make(map[string]*Metric),
		startTime: time.Now(),
	}
}

// RecordMetric 记录指标样本
func (mc *MetricsCollector) RecordMetric(metric *Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric.Timestamp = time.Now()
	if metric.Type == "" {
		metric.Type = MetricTypeGauge
	}
	mc.metrics[metric.Name] = append(mc.metrics[metric.Name], metric)

	// 限制历史大小（保留最近1000个）
	if len(mc.metrics[metric.Name]) > maxHistory {
		mc.metrics[metric.Name] = mc.metrics[metric.Name][100:]
	}
}

// ObserveDuration 记录耗时（毫秒）
func (mc *MetricsCollector) ObserveDuration(name string, d time.Duration) {
	mc.RecordMetric(&Metric{
		Name:  name,
		Type:  MetricTypeGauge,
		Value: float64(d) / float64(time.Millisecond),
	})
}

// IncCounter 计数器加一
func (mc *MetricsCollector) IncCounter(name string, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	key := counterKey(name, labels)
	counter, ok := mc.counters[key]
	if !ok {
		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		counter = &Metric{Name: name, Type: MetricTypeCounter, Labels: copied}
		mc.counters[key] = counter
	}
	counter.Value++
	counter.Timestamp = time.Now()
}

// CounterValue 获取计数器当前值
func (mc *MetricsCollector) CounterValue(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	if counter, ok := mc.counters[counterKey(name, labels)]; ok {
		return counter.Value
	}
	return 0
}

// GetMetric 获取指标
func (mc *MetricsCollector) GetMetric(name string) ([]*Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metrics, ok := mc.metrics[name]
	if !ok {
		return nil, fmt.Errorf("metric %s not found", name)
	}

	// 返回副本
	result := make([]*Metric, len(metrics))
	for i, m := range metrics {
		metricCopy := *m
		result[i] = &metricCopy
	}

	return result, nil
}

// GetMetricSummary 获取指标摘要
func (mc *MetricsCollector) GetMetricSummary(name string) (map[string]interface{}, error) {
	metrics, err := mc.GetMetric(name)
	if err != nil {
		return nil, err
	}

	if len(metrics) == 0 {
		return map[string]interface{}{
			"count": 0,
		}, nil
	}

	min, max, sum := metrics[0].Value, metrics[0].Value, 0.0
	for _, m := range metrics {
		sum += m.Value
		if m.Value < min {
			min = m.Value
		}
		if m.Value > max {
			max = m.Value
		}
	}

	return map[string]interface{}{
		"count":     len(metrics),
		"latest":    metrics[len(metrics)-1].Value,
		"min":       min,
		"max":       max,
		"avg":       sum / float64(len(metrics)),
		"timestamp": metrics[len(metrics)-1].Timestamp,
	}, nil
}

// Snapshot 指标快照
type Snapshot struct {
	Uptime    string                            `json:"uptime"`
	Counters  []Metric                          `json:"counters"`
	Summaries map[string]map[string]interface{} `json:"summaries"`
}

// Snapshot 导出所有计数器和样本摘要
func (mc *MetricsCollector) Snapshot() Snapshot {
	mc.metricsLock.RLock()
	counters := make([]Metric, 0, len(mc.counters))
	for _, c := range mc.counters {
		counters = append(counters, *c)
	}
	names := make([]string, 0, len(mc.metrics))
	for name := range mc.metrics {
		names = append(names, name)
	}
	mc.metricsLock.RUnlock()

	sort.Slice(counters, func(i, j int) bool {
		return counterKey(counters[i].Name, counters[i].Labels) < counterKey(counters[j].Name, counters[j].Labels)
	})

	summaries := make(map[string]map[string]interface{}, len(names))
	for _, name := range names {
		if summary, err := mc.GetMetricSummary(name); err == nil {
			summaries[name] = summary
		}
	}

	return Snapshot{
		Uptime:    time.Since(mc.startTime).Round(time.Second).String(),
		Counters:  counters,
		Summaries: summaries,
	}
}

func counterKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
