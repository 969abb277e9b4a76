package watcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"setlist/internal/fileutil"
	"setlist/internal/index"
)

// volumeMonitor listens for udev block-device events and reconciles
// removable locations: when a volume appears its locations reactivate, when
// it disappears they deactivate. Linux only; on connect failure the monitor
// stays off and removable locations depend on manual activation.
type volumeMonitor struct {
	store  *index.Store
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newVolumeMonitor(store *index.Store, logger *slog.Logger) *volumeMonitor {
	return &volumeMonitor{store: store, logger: logger.With("subsystem", "volumes")}
}

func (m *volumeMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink unavailable, removable volumes need manual activation", "error", err)
		return
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)
	m.logger.Info("volume monitor started")
}

func (m *volumeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

func (m *volumeMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}
	monitorQuit := conn.Monitor(queue, errs, blockDeviceMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.logger.Debug("block device event", "action", string(uevent.Action), "kobj", uevent.KObj)
			m.reconcile(ctx)
		case err := <-errs:
			m.logger.Warn("volume monitor error", "error", err)
		}
	}
}

// blockDeviceMatcher selects add/remove events for block devices; partition
// mounts settle shortly after, so reconcile re-checks root accessibility.
func blockDeviceMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
		},
	})
	return rules
}

// reconcile flips removable locations to match whether their root is
// currently reachable.
func (m *volumeMonitor) reconcile(ctx context.Context) {
	locations, err := m.store.ListLocations(ctx)
	if err != nil {
		m.logger.Warn("list locations failed", "error", err)
		return
	}
	for _, location := range locations {
		if location.Type != index.LocationRemovable {
			continue
		}
		reachable := fileutil.IsDir(location.RootPath)
		if reachable == location.Active {
			continue
		}
		if err := m.store.SetLocationActive(ctx, location.ID, reachable); err != nil {
			m.logger.Warn("toggle location failed", "location_id", location.ID, "error", err)
			continue
		}
		if reachable {
			m.logger.Info("removable location reactivated", "root", location.RootPath)
		} else {
			m.logger.Info("removable location deactivated", "root", location.RootPath)
		}
	}
}
