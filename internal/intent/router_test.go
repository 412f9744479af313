package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCompleter struct {
	text string
	err  error
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	return f.text, f.err
}

func TestClassifyUsesModelLabel(t *testing.T) {
	router := NewRouter(&fakeCompleter{text: `{"intent": "MEDICATION"}`}, nil)

	label := router.Classify(context.Background(), "thuốc paracetamol uống thế nào")
	assert.Equal(t, LabelMedication, label)
}

func TestClassifyExtractsJSONFromProse(t *testing.T) {
	router := NewRouter(&fakeCompleter{text: "Sure! {\"intent\": \"APPOINTMENT\"} hope that helps"}, nil)

	label := router.Classify(context.Background(), "đặt lịch khám nhi")
	assert.Equal(t, LabelAppointment, label)
}

func TestClassifyFallsBackOnModelError(t *testing.T) {
	router := NewRouter(&fakeCompleter{err: errors.New("model unavailable")}, nil)

	label := router.Classify(context.Background(), "tôi muốn đặt lịch khám")
	assert.Equal(t, LabelAppointment, label)
}

func TestClassifyFallsBackOnOutOfEnumLabel(t *testing.T) {
	router := NewRouter(&fakeCompleter{text: `{"intent": "BILLING"}`}, nil)

	label := router.Classify(context.Background(), "tìm bác sĩ tim mạch")
	assert.Equal(t, LabelInformation, label)
}

func TestClassifyByKeywords(t *testing.T) {
	tests := []struct {
		utterance string
		want      Label
	}{
		{"tìm bác sĩ tim mạch", LabelInformation},
		{"đặt lịch khám nhi", LabelAppointment},
		{"hủy lịch hẹn của tôi", LabelAppointment},
		{"thuốc hạ sốt cho trẻ", LabelMedication},
		{"xin chào", LabelGeneral},
		{"I want to cancel my appointment", LabelAppointment},
		{"what are the side effects of this drug", LabelMedication},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyByKeywords(tt.utterance), "utterance %q", tt.utterance)
	}
}

func TestClassifyEmptyUtterance(t *testing.T) {
	router := NewRouter(nil, nil)

	assert.Equal(t, LabelGeneral, router.Classify(context.Background(), "  "))
}
