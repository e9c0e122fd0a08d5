package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/VParka/fast-interview-sub002/internal/synthcache"
	"github.com/VParka/fast-interview-sub002/internal/tts"
)

func newSynthesisFixture(primary, fallback *fakeTTS) *SynthesisStage {
	return NewSynthesisStage(NewInvoker(nil), primary, fallback, synthcache.New(8, nil), nil, SynthesisConfig{
		DefaultVoice: "alloy",
		DefaultSpeed: 1.0,
		DefaultModel: "tts-1",
		Timeout:      time.Second,
	})
}

func TestSynthesisMissThenHit(t *testing.T) {
	primary := &fakeTTS{name: "openai-tts", result: &tts.Result{Audio: []byte("audio-bytes"), ContentType: "audio/mpeg"}}
	stage := newSynthesisFixture(primary, &fakeTTS{name: "elevenlabs"})

	first, attempts, err := stage.Run(context.Background(), &Request{}, "Hello World")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first synthesis reported a cache hit")
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}

	// Same text modulo case and spacing addresses the same entry.
	second, attempts, err := stage.Run(context.Background(), &Request{}, "  hello   world ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("normalized repeat was not served from cache")
	}
	if attempts != nil {
		t.Fatalf("cache hit made provider attempts: %v", attempts)
	}
	if string(second.Data) != string(first.Data) {
		t.Fatal("cached audio is not byte-identical")
	}
	if primary.calls != 1 {
		t.Fatalf("provider called %d times, want 1", primary.calls)
	}
}

func TestSynthesisDistinctVoicesDistinctEntries(t *testing.T) {
	primary := &fakeTTS{name: "openai-tts", result: &tts.Result{Audio: []byte("x"), ContentType: "audio/mpeg"}}
	stage := newSynthesisFixture(primary, &fakeTTS{name: "elevenlabs"})

	if _, _, err := stage.Run(context.Background(), &Request{Voice: "alloy"}, "same text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := stage.Run(context.Background(), &Request{Voice: "nova"}, "same text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 2 {
		t.Fatalf("provider called %d times, want 2 (one per voice)", primary.calls)
	}
}

func TestSynthesisFailsOver(t *testing.T) {
	primary := &fakeTTS{name: "openai-tts", err: errors.New("quota")}
	fallback := &fakeTTS{name: "elevenlabs", result: &tts.Result{Audio: []byte("11labs"), ContentType: "audio/mpeg"}}
	stage := newSynthesisFixture(primary, fallback)

	audio, attempts, err := stage.Run(context.Background(), &Request{}, "fail over please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio.Provider != "elevenlabs" {
		t.Fatalf("provider = %s", audio.Provider)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}
}

func TestSynthesisEmptyAudioTriggersFailover(t *testing.T) {
	primary := &fakeTTS{name: "openai-tts", result: &tts.Result{Audio: nil}}
	fallback := &fakeTTS{name: "elevenlabs", result: &tts.Result{Audio: []byte("ok"), ContentType: "audio/mpeg"}}
	stage := newSynthesisFixture(primary, fallback)

	audio, _, err := stage.Run(context.Background(), &Request{}, "speak up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio.Data) != "ok" {
		t.Fatalf("audio = %q", audio.Data)
	}
}

func TestSynthesisFallbackGetsMappedVoice(t *testing.T) {
	primary := &fakeTTS{name: "openai-tts", err: errors.New("quota")}
	fallback := &fakeTTS{name: "elevenlabs", result: &tts.Result{Audio: []byte("ok"), ContentType: "audio/mpeg"}}
	stage := NewSynthesisStage(NewInvoker(nil), primary, fallback, synthcache.New(8, nil), nil, SynthesisConfig{
		DefaultVoice:  "alloy",
		FallbackVoice: "21m00Tcm4TlvDq8ikWAM",
		DefaultSpeed:  1.0,
		Timeout:       time.Second,
	})

	audio, _, err := stage.Run(context.Background(), &Request{}, "voices differ per vendor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio.Provider != "elevenlabs" {
		t.Fatalf("provider = %s", audio.Provider)
	}
	if primary.lastReq.Voice != "alloy" {
		t.Fatalf("primary voice = %q", primary.lastReq.Voice)
	}
	if fallback.lastReq.Voice != "21m00Tcm4TlvDq8ikWAM" {
		t.Fatalf("fallback voice = %q, want the vendor's own voice id", fallback.lastReq.Voice)
	}

	// The cache entry is addressed by the logical voice, so a repeat with
	// the default voice hits it.
	second, attempts, err := stage.Run(context.Background(), &Request{}, "voices differ per vendor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.CacheHit || attempts != nil {
		t.Fatalf("repeat not served from cache: hit=%v attempts=%v", second.CacheHit, attempts)
	}
}

func TestSynthesisBothFail(t *testing.T) {
	primary := &fakeTTS{name: "openai-tts", err: errors.New("down")}
	fallback := &fakeTTS{name: "elevenlabs", err: errors.New("down too")}
	stage := newSynthesisFixture(primary, fallback)

	_, _, err := stage.Run(context.Background(), &Request{}, "nope")
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("want ExhaustedError, got %v", err)
	}
	if ex.Code() != CodeTTSFailed {
		t.Fatalf("code = %s", ex.Code())
	}
}
