package models

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallbackForm(t *testing.T) {
	values := url.Values{
		"paymentid": {"PID-1"},
		"result":    {" CAPTURED "},
		"TrackId":   {"ALM-42-638000000000000000"},
		"amt":       {"450.00"},
		"udf1":      {"42"},
		"Error":     {""},
		"ignored":   {"x"},
	}

	form := ParseCallbackForm(values)

	assert.Equal(t, Field{Value: "PID-1", Present: true}, form.PaymentID)
	assert.Equal(t, "CAPTURED", form.Result.Value)
	assert.Equal(t, "ALM-42-638000000000000000", form.TrackID.Value)
	assert.Equal(t, "450.00", form.Amount.Value)
	assert.Equal(t, "42", form.UDF1.Value)

	assert.True(t, form.Error.Present)
	assert.False(t, form.Error.IsSet())

	assert.False(t, form.Hash.Present)
	assert.False(t, form.TranID.Present)
}

func TestParseCallbackForm_RepeatedKeys(t *testing.T) {
	form := ParseCallbackForm(url.Values{"trackid": {"", "ALM-1-1", "ALM-1-2"}})
	assert.Equal(t, "ALM-1-1", form.TrackID.Value)
}

func TestCallbackForm_HasOutcomeSignal(t *testing.T) {
	assert.False(t, ParseCallbackForm(url.Values{"trackid": {"ALM-1-1"}, "result": {""}}).HasOutcomeSignal())
	assert.True(t, ParseCallbackForm(url.Values{"result": {"NOT CAPTURED"}}).HasOutcomeSignal())
	assert.True(t, ParseCallbackForm(url.Values{"ErrorText": {"Declined"}}).HasOutcomeSignal())
}

func TestCallbackForm_AuditPayloadDropsSecrets(t *testing.T) {
	form := ParseCallbackForm(url.Values{
		"trackid":  {"ALM-1-1"},
		"hash":     {"deadbeef"},
		"trandata": {"cafebabe"},
	})

	payload := form.AuditPayload()

	assert.Equal(t, "ALM-1-1", payload["trackid"])
	assert.NotContains(t, payload, "hash")
	assert.NotContains(t, payload, "trandata")
	assert.Equal(t, true, payload["hash_present"])
	assert.Equal(t, true, payload["trandata_present"])
}

func TestParseCallbackPayload(t *testing.T) {
	t.Run("JSON array", func(t *testing.T) {
		values, err := ParseCallbackPayload(`[{"paymentid":"PID","result":"CAPTURED","amt":450.00,"udf1":42,"ref":null}]`)
		require.NoError(t, err)
		assert.Equal(t, "PID", values.Get("paymentid"))
		assert.Equal(t, "450.00", values.Get("amt"))
		assert.Equal(t, "42", values.Get("udf1"))
		assert.True(t, values.Has("ref"))
	})

	t.Run("JSON object", func(t *testing.T) {
		values, err := ParseCallbackPayload(`{"trackid":"ALM-1-1"}`)
		require.NoError(t, err)
		assert.Equal(t, "ALM-1-1", values.Get("trackid"))
	})

	t.Run("Query string", func(t *testing.T) {
		values, err := ParseCallbackPayload("paymentid=PID&result=CAPTURED&trackid=ALM-1-1")
		require.NoError(t, err)
		assert.Equal(t, "CAPTURED", values.Get("result"))
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, input := range []string{"", "   ", "[]", "[{", "{bad"} {
			_, err := ParseCallbackPayload(input)
			assert.Error(t, err, input)
		}
	})
}
