package paystack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"charge.success","data":{"reference":"ps_ref_1"}}`)
	sig := Sign("sk_test_secret", body)

	assert.True(t, ValidSignature("sk_test_secret", body, sig))
	assert.False(t, ValidSignature("sk_other", body, sig))
	assert.False(t, ValidSignature("sk_test_secret", append(body, ' '), sig))
	assert.False(t, ValidSignature("sk_test_secret", body, "not-hex"))
	assert.False(t, ValidSignature("sk_test_secret", body, ""))
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	ev, err := ParseEvent([]byte(`{
		"event": "charge.success",
		"data": {"reference": "ps_ref_1", "status": "success", "amount": 250000,
		         "customer": {"email": "ada@example.com"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, EventChargeSuccess, ev.Event)
	assert.Equal(t, "ps_ref_1", ev.Data.Reference)
	assert.Equal(t, int64(250000), ev.Data.Amount)
	assert.Equal(t, "ada@example.com", ev.Data.Customer.Email)

	_, err = ParseEvent([]byte(`{`))
	require.Error(t, err)
}
