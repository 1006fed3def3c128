package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/platform/config"
)

func TestClientOptions(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.KafkaConfig
		wantErr string
	}{
		{"default acks", config.KafkaConfig{Brokers: "localhost:9092"}, ""},
		{"leader acks", config.KafkaConfig{Brokers: "a:9092, b:9092", Acks: "1"}, ""},
		{"no acks", config.KafkaConfig{Brokers: "a:9092", Acks: "0"}, ""},
		{"no brokers", config.KafkaConfig{Brokers: " , "}, "brokers not configured"},
		{"unknown acks", config.KafkaConfig{Brokers: "a:9092", Acks: "quorum"}, "KAFKA_ACKS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := clientOptions(tc.cfg)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, opts)
		})
	}
}

func TestToRecordSortsHeaders(t *testing.T) {
	rec := toRecord(&Message{
		Topic: "consentry.audit",
		Key:   []byte("j***e@example.com"),
		Value: []byte(`{}`),
		Headers: map[string]string{
			"request_id": "req-1",
			"action":     "gdpr_export_requested",
		},
	})

	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "action", rec.Headers[0].Key)
	assert.Equal(t, "request_id", rec.Headers[1].Key)
	assert.Equal(t, "consentry.audit", rec.Topic)
}
