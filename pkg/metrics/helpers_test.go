package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// findSeries returns the series of family name carrying label=value.
func findSeries(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric, nil
			}
		}
	}
	return nil, fmt.Errorf("metric %q has no series %s=%s", name, label, value)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findSeries(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}
