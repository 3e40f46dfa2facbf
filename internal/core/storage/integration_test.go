package storage

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
)

// ============= Fx 模块测试 =============

func TestModule_Basic(t *testing.T) {
	tmpDir := t.TempDir()

	var eng engine.Engine
	var cfg Config

	unifiedCfg := config.NewConfig()
	unifiedCfg.Storage.DataDir = tmpDir

	app := fxtest.New(t,
		fx.Supply(unifiedCfg),
		Module(),
		fx.Populate(&eng, &cfg),
	)

	app.RequireStart()
	defer app.RequireStop()

	if eng == nil {
		t.Fatal("engine is nil")
	}
	if cfg.Path == "" {
		t.Error("expected Path to be set")
	}

	key := []byte("test-key")
	value := []byte("test-value")

	if err := eng.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := eng.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestModule_Lifecycle(t *testing.T) {
	var eng engine.Engine

	startCalled := false
	stopCalled := false

	unifiedCfg := config.NewConfig()
	unifiedCfg.Storage.InMemory = true

	app := fxtest.New(t,
		fx.Supply(unifiedCfg),
		Module(),
		fx.Populate(&eng),
		fx.Invoke(func(lc fx.Lifecycle, e engine.Engine) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					startCalled = true
					return e.Put([]byte("lifecycle-key"), []byte("started"))
				},
				OnStop: func(ctx context.Context) error {
					stopCalled = true
					return nil
				},
			})
		}),
	)

	app.RequireStart()

	if !startCalled {
		t.Error("OnStart hook not called")
	}

	val, err := eng.Get([]byte("lifecycle-key"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "started" {
		t.Errorf("unexpected value: %s", val)
	}

	app.RequireStop()

	if !stopCalled {
		t.Error("OnStop hook not called")
	}

	// 关闭后操作应返回 ErrClosed
	if _, err := eng.Get([]byte("lifecycle-key")); !IsClosed(err) {
		t.Errorf("expected ErrClosed after stop, got %v", err)
	}
}

// ============= 配置测试 =============

func TestConfig_Default(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Path == "" {
		t.Error("default config should have a path")
	}
	if cfg.GCInterval != 10*time.Minute {
		t.Errorf("unexpected GCInterval: %v", cfg.GCInterval)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid default", cfg: DefaultConfig(), wantErr: false},
		{name: "valid with custom path", cfg: Config{Path: "/data/test"}, wantErr: false},
		{name: "valid in-memory without path", cfg: Config{InMemory: true}, wantErr: false},
		{name: "invalid - empty path", cfg: Config{Path: ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromUnified(t *testing.T) {
	unified := config.NewConfig()
	unified.Storage.DataDir = "/var/lib/dhtstore"
	unified.Storage.SyncWrites = true

	cfg := ConfigFromUnified(unified)
	if cfg.Path != unified.Storage.DBPath() {
		t.Errorf("unexpected path: %s", cfg.Path)
	}
	if !cfg.SyncWrites {
		t.Error("SyncWrites should be true")
	}

	mem := cfg.WithInMemory(true)
	ecfg := mem.ToEngineConfig()
	if !ecfg.InMemory {
		t.Error("engine config should be in-memory")
	}
}
