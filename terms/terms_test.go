package terms

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityledger/libeto-go/ulps"
)

const sampleTerms = `{
  "whitelist_duration": "72h",
  "public_duration": "168h",
  "signing_duration": "336h",
  "claim_duration": "240h",
  "max_rate_age": "1h",
  "min_ticket": "100",
  "max_ticket": "1000000",
  "max_investment": "50000000",
  "min_number_of_tokens": "1000",
  "max_number_of_tokens": "100000000",
  "token_price": "1",
  "public_price_frac": "0.9",
  "platform_fee_frac": "0.03"
}`

func TestParse(t *testing.T) {
	tm, err := Parse([]byte(sampleTerms))
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, tm.MinStartLeadTime)
	assert.Equal(t, 72*time.Hour, tm.WhitelistDuration)
	assert.Equal(t, ulps.FromUnits(100).String(), tm.MinTicket.String())
	assert.Equal(t, "900000000000000000", tm.PublicPriceFrac.String())
	assert.Equal(t, tm.PublicPriceFrac.String(), tm.MigratedPriceFrac.String(),
		"migrated fraction defaults to the public fraction")
	assert.Equal(t, "30000000000000000", tm.PlatformFeeFrac.String())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		patch map[string]string
	}{
		{"zero price frac", map[string]string{"public_price_frac": "0"}},
		{"frac above one", map[string]string{"public_price_frac": "1.5"}},
		{"fee of one", map[string]string{"platform_fee_frac": "1"}},
		{"max below min ticket", map[string]string{"max_ticket": "50"}},
		{"bad duration", map[string]string{"public_duration": "forever"}},
		{"zero duration", map[string]string{"claim_duration": "0s"}},
		{"bad amount", map[string]string{"min_ticket": "abc"}},
		{"cap below threshold", map[string]string{"max_number_of_tokens": "999"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, err := Parse([]byte(patched(t, tt.patch)))
			assert.Nil(t, tm)
			assert.ErrorIs(t, err, ErrInvalidTerms)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terms.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleTerms), 0600))

	tm, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ulps.FromUnits(1).String(), tm.TokenPrice.String())

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrTermsNotFound)
}

func TestClone_IsDeep(t *testing.T) {
	tm, err := Parse([]byte(sampleTerms))
	require.NoError(t, err)

	c := tm.Clone()
	c.MinTicket.SetInt64(1)
	assert.Equal(t, ulps.FromUnits(100).String(), tm.MinTicket.String())
}

// patched returns sampleTerms with the given keys replaced.
func patched(t *testing.T, patch map[string]string) string {
	t.Helper()
	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(sampleTerms), &doc))
	for k, v := range patch {
		doc[k] = v
	}
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(out)
}
