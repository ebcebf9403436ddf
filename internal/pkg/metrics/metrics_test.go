package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsRepeatable(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCountersAreLabelled(t *testing.T) {
	before := testutil.ToFloat64(WebhookDeliveriesTotal.WithLabelValues("acknowledged"))
	WebhookDeliveriesTotal.WithLabelValues("acknowledged").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WebhookDeliveriesTotal.WithLabelValues("acknowledged")))

	EntitlementsActive.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(EntitlementsActive))
}

func TestGrantResult(t *testing.T) {
	assert.Equal(t, "granted", GrantResult(nil))
	assert.Equal(t, "failed", GrantResult(errors.New("x")))
}
