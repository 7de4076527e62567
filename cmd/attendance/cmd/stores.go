package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	pkgconfig "github.com/tendant/attendance-gate/pkg/config"
	"github.com/tendant/attendance-gate/pkg/device"
	"github.com/tendant/attendance-gate/pkg/restriction"
	"github.com/tendant/attendance-gate/pkg/sessionkey"
)

// stores holds the persistence selected by GatewayConfig
type stores struct {
	pool         *pgxpool.Pool
	devices      device.DeviceRepository
	restrictions restriction.Store
	sessionKeys  sessionkey.Repository
	closers      []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Error("Failed to close store", "err", err)
		}
	}
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	if err := cfg.DatabaseConfig.Validate(); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseConfig.ToDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// openDeviceStores opens the device and restriction stores. Both live in
// Postgres unless the device store is configured as memory.
func openDeviceStores(ctx context.Context, s *stores) error {
	if cfg.Gateway.DeviceStore == pkgconfig.StoreMemory {
		slog.Warn("Using in-memory device store; enrollments are lost on restart")
		s.devices = device.NewInMemDeviceRepository()
		s.restrictions = restriction.NewMemoryStore()
		return nil
	}

	pool, err := connect(ctx)
	if err != nil {
		return err
	}
	s.pool = pool
	s.closers = append(s.closers, func() error { pool.Close(); return nil })

	s.devices, err = device.NewDeviceRepository(cfg.Gateway.DeviceStore, device.RepositoryConfig{DB: pool})
	if err != nil {
		return err
	}
	s.restrictions = restriction.NewPostgresStore(pool)
	return nil
}

func openSessionKeys(s *stores) error {
	if cfg.Gateway.SessionStore == pkgconfig.StoreMemory {
		s.sessionKeys = sessionkey.NewMemoryRepository()
		return nil
	}

	repo, err := sessionkey.OpenBoltRepository(cfg.Gateway.BoltPath)
	if err != nil {
		return err
	}
	s.sessionKeys = repo
	s.closers = append(s.closers, repo.Close)
	slog.Info("Session keys stored in bbolt", "path", cfg.Gateway.BoltPath)
	return nil
}

// openStores opens every store the server needs
func openStores(ctx context.Context) (*stores, error) {
	s := &stores{}
	if err := openDeviceStores(ctx, s); err != nil {
		s.Close()
		return nil, err
	}
	if err := openSessionKeys(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
