package embedding

import (
	"math"
	"testing"
)

func TestL2Normalize(t *testing.T) {
	vec := []float32{3.0, 4.0, 0, 0, 0}
	result := l2Normalize(vec)

	if math.Abs(float64(result[0])-0.6) > 0.001 {
		t.Errorf("result[0] = %f, want ~0.6", result[0])
	}
	if math.Abs(float64(result[1])-0.8) > 0.001 {
		t.Errorf("result[1] = %f, want ~0.8", result[1])
	}
}

func TestL2Normalize_ZeroVector(t *testing.T) {
	vec := []float32{0, 0, 0}
	result := l2Normalize(vec)
	if result[0] != 0 || result[1] != 0 || result[2] != 0 {
		t.Error("zero vector should remain zero")
	}
}

func TestL2Normalize_UnitNormAfterScaling(t *testing.T) {
	vec := make([]float32, 768)
	vec[0] = 3.0
	vec[1] = 4.0
	result := l2Normalize(vec)

	var sumSq float64
	for _, v := range result {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 0.001 {
		t.Errorf("L2 norm = %f, want ~1.0", norm)
	}
}

func TestEndpointURL_GlobalVsRegional(t *testing.T) {
	global := &Client{project: "proj", location: "global", model: "text-embedding-004"}
	if got, want := global.endpointURL(), "https://aiplatform.googleapis.com/v1/projects/proj/locations/global/publishers/google/models/text-embedding-004:predict"; got != want {
		t.Errorf("endpointURL() = %q, want %q", got, want)
	}

	regional := &Client{project: "proj", location: "us-east4", model: "text-embedding-004"}
	if got, want := regional.endpointURL(), "https://us-east4-aiplatform.googleapis.com/v1/projects/proj/locations/us-east4/publishers/google/models/text-embedding-004:predict"; got != want {
		t.Errorf("endpointURL() = %q, want %q", got, want)
	}
}

func TestEmbed_RejectsEmptyInput(t *testing.T) {
	c := &Client{project: "proj", location: "global", model: "text-embedding-004", dimensions: 768}
	if _, err := c.embed(nil, nil, taskRetrievalDocument); err == nil {
		t.Error("expected error for empty texts")
	}
}
