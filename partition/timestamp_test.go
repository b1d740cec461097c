package partition

import (
	"testing"
	"time"

	"github.com/lakestore/tablecore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestamp_DefaultTemplateUsesFirstSchemaField(t *testing.T) {
	schema := Schema{{Name: "dt", Type: FieldString}, {Name: "region", Type: FieldString}}
	got, err := ExtractTimestamp(map[string]string{"dt": "20260115"}, DefaultTemplate(schema), "")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
}

func TestDefaultTemplate_EmptySchema(t *testing.T) {
	assert.Equal(t, "", DefaultTemplate(nil))
}

func TestExtractTimestamp_CompositionTemplate(t *testing.T) {
	values := map[string]string{"year": "2026", "month": "03", "day": "07"}
	got, err := ExtractTimestamp(values, "{year}{month}{day}", "20060102")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)))
}

func TestExtractTimestamp_NoTemplateIsUnparseable(t *testing.T) {
	_, err := ExtractTimestamp(map[string]string{}, "", "")
	var uerr *core.UnparseableTimestampError
	assert.ErrorAs(t, err, &uerr)
}

func TestExtractTimestamp_TemplateReferencesMissingFieldIsUnparseable(t *testing.T) {
	_, err := ExtractTimestamp(map[string]string{"year": "2026"}, "{year}{month}", "200601")
	var uerr *core.UnparseableTimestampError
	assert.ErrorAs(t, err, &uerr)
}

func TestExtractTimestamp_UnterminatedPlaceholderIsUnparseable(t *testing.T) {
	_, err := ExtractTimestamp(map[string]string{"year": "2026"}, "{year", "2006")
	var uerr *core.UnparseableTimestampError
	assert.ErrorAs(t, err, &uerr)
}

func TestExtractTimestamp_MalformedValueIsUnparseable(t *testing.T) {
	_, err := ExtractTimestamp(map[string]string{"dt": "not-a-date"}, "{dt}", "")
	var uerr *core.UnparseableTimestampError
	assert.ErrorAs(t, err, &uerr)
}
