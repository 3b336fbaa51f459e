package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSpec   = "framegraph/spec/v1"
	DomainLayout = "framegraph/layout/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash identifies a graph description independent of formatting and of
// the syntax it was written in.
func SpecHash(spec *GraphSpec) (string, error) {
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("SpecHash: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// LayoutHash identifies what a compile decided: execution order, slot
// assignment and lifetimes. Frame numbers are excluded, so two frames of the
// same description that compiled identically agree.
func LayoutHash(r *CompileReport) (string, error) {
	type resource struct {
		Key   string `json:"key"`
		Kind  string `json:"kind"`
		Slot  int    `json:"slot"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	}
	resources := make([]resource, len(r.Resources))
	for i, res := range r.Resources {
		resources[i] = resource{res.Key, res.Kind, res.Slot, res.Start, res.End}
	}
	layout := struct {
		Passes    []PassReport `json:"passes"`
		Slots     []SlotReport `json:"slots"`
		Resources []resource   `json:"resources"`
	}{r.Passes, r.Slots, resources}
	canonical, err := MarshalCanonical(layout)
	if err != nil {
		return "", fmt.Errorf("LayoutHash: %w", err)
	}
	return hashWithDomain(DomainLayout, canonical), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(spec *GraphSpec) string {
	h, err := SpecHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
