package server

import (
	"testing"

	"google.golang.org/grpc/health"
)

func TestRegisterServices_HealthOnly(t *testing.T) {
	s := NewGRPCServer()
	hs := RegisterServices(s, Deps{})
	if hs == nil {
		t.Fatal("RegisterServices should return the health server")
	}
	info := s.GetServiceInfo()
	if _, ok := info["grpc.health.v1.Health"]; !ok {
		t.Errorf("health service not registered: %v", info)
	}
	if len(info) != 1 {
		t.Errorf("registered %d services, want 1", len(info))
	}
}

func TestRegisterServices_ReuseHealthAndReflection(t *testing.T) {
	s := NewGRPCServer()
	existing := health.NewServer()
	if got := RegisterServices(s, Deps{Health: existing, Reflection: true}); got != existing {
		t.Error("provided health server should be reused")
	}
	if len(s.GetServiceInfo()) < 2 {
		t.Errorf("reflection not registered: %v", s.GetServiceInfo())
	}
}
