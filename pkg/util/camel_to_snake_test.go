package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCamelToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Id":            "id",
		"RunId":         "run_id",
		"LocalOutcome":  "local_outcome",
		"CreatedAt":     "created_at",
		"ErrorKind":     "error_kind",
		"SMTPHost":      "smtp_host",
		"Retention2Day": "retention2_day",
		"day":           "day",
		"":              "",
	}

	for in, expected := range cases {
		assert.Equal(t, expected, CamelToSnakeCase(in), in)
	}
}
