package config_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/vadscribe/internal/config"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	sttmock "github.com/MrWong99/vadscribe/pkg/provider/stt/mock"
	"github.com/MrWong99/vadscribe/pkg/provider/vad"
	vadmock "github.com/MrWong99/vadscribe/pkg/provider/vad/mock"
)

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &sttmock.Recognizer{}
	var got config.ProviderEntry
	reg.RegisterSTT("mock", func(e config.ProviderEntry) (stt.Recognizer, error) {
		got = e
		return want, nil
	})

	rec, err := reg.CreateSTT(config.ProviderEntry{Name: "mock", Model: "m"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if rec != want {
		t.Error("factory result not returned")
	}
	if got.Model != "m" {
		t.Errorf("factory saw entry %+v", got)
	}
}

func TestRegistry_CreateVAD(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterVAD("mock", func(config.ProviderEntry) (vad.Detector, error) {
		return &vadmock.Detector{}, nil
	})
	if _, err := reg.CreateVAD(config.ProviderEntry{Name: "mock"}); err != nil {
		t.Fatalf("CreateVAD: %v", err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateVAD(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateVAD err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("bad key")
	reg.RegisterSTT("broken", func(config.ProviderEntry) (stt.Recognizer, error) { return nil, boom })
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "broken"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	for _, n := range []string{"whisper", "openai", "deepgram"} {
		reg.RegisterSTT(n, func(config.ProviderEntry) (stt.Recognizer, error) { return nil, nil })
	}
	got := reg.STTNames()
	want := []string{"deepgram", "openai", "whisper"}
	if len(got) != len(want) {
		t.Fatalf("STTNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("STTNames = %v, want %v", got, want)
			break
		}
	}
	if len(reg.VADNames()) != 0 {
		t.Errorf("VADNames = %v, want none", reg.VADNames())
	}
}
