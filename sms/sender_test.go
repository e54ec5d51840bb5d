package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civic-fix/api-go/config"
)

func TestHTTPSenderSend(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"messageId":"m-1"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(config.SMSConfig{GatewayURL: srv.URL, APIKey: "secret"})
	res, err := s.Send(context.Background(), "0812345678", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success || res.MessageID != "m-1" {
		t.Errorf("result = %+v", res)
	}
	if got.To != "0812345678" || got.Message != "hello" {
		t.Errorf("request = %+v", got)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestHTTPSenderProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"invalid number"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(config.SMSConfig{GatewayURL: srv.URL})
	res, err := s.Send(context.Background(), "1", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success || res.Error != "invalid number" {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPSenderGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	s := NewHTTPSender(config.SMSConfig{GatewayURL: srv.URL})
	if _, err := s.Send(context.Background(), "0812345678", "hello"); err == nil {
		t.Fatal("expected error for non-JSON 502")
	}
}

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	res, err := LogSender{}.Send(context.Background(), "0812345678", "hello")
	if err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}
