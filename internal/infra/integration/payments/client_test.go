package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyStripe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/stripe-checkout", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("apikey"))

		var req functionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "verify", req.Action)
		assert.Equal(t, "sess_1", req.SessionID)
		assert.Empty(t, req.OrderID)

		w.Write([]byte(`{"paid":true,"status":"complete","shippo":{"labelUrl":"https://l/1.pdf","trackingNumber":"94001"}}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "key").VerifyStripe(context.Background(), VerifyStripeInput{
		LeadID: "lead_1", SessionID: "sess_1", Product: "usb_500",
	})

	require.NoError(t, err)
	require.NotNil(t, out.Paid)
	assert.True(t, *out.Paid)
	assert.Equal(t, "94001", out.Shippo.TrackingNumber)
}

func TestVerifyStripeMissingPaidFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"open"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "key").VerifyStripe(context.Background(), VerifyStripeInput{SessionID: "s"})

	require.NoError(t, err)
	assert.Nil(t, out.Paid)
}

func TestVerifyStripeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "key").VerifyStripe(context.Background(), VerifyStripeInput{SessionID: "s"})
	assert.ErrorContains(t, err, "status 500")
}

func TestCapturePayPalShippingCodeOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req functionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "capture", req.Action)
		assert.Equal(t, "ORDER-9", req.OrderID)

		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"completed":false,"code":"SHIPPING_ADDRESS_INVALID","message":"bad zip"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "key").CapturePayPal(context.Background(), CapturePayPalInput{
		LeadID: "lead_1", OrderID: "ORDER-9",
	})

	require.NoError(t, err)
	assert.Equal(t, CodeShippingAddressInvalid, out.Code)
	assert.False(t, out.Completed)
}

func TestCapturePayPalErrorWithoutCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "key").CapturePayPal(context.Background(), CapturePayPalInput{OrderID: "o"})
	assert.ErrorContains(t, err, "status 502")
}
