// Package lifecycle — менеджер управляемых подсистем бота.
// Узлы регистрируются с явными зависимостями; StartAll поднимает их так, что
// зависимости стартуют раньше, а Shutdown гасит в порядке, обратном фактическому
// запуску. Каждый узел получает свой контекст, производный от корневого, который
// отменяется перед вызовом его StopFunc.
package lifecycle

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"telegram-exportbot/internal/infra/logger"
)

// StartFunc запускает узел. ctx живёт до остановки узла: фоновые горутины
// узла должны завершаться по его отмене.
type StartFunc func(ctx context.Context) error

// StopFunc останавливает узел. Контекст узла к этому моменту уже отменён.
type StopFunc func() error

type nodeStatus int

const (
	statusRegistered nodeStatus = iota
	statusStarting
	statusRunning
	statusStopped
	statusFailed
)

type node struct {
	name  string
	deps  []string
	start StartFunc
	stop  StopFunc

	cancel context.CancelFunc
	status nodeStatus
}

// Manager управляет набором узлов. Потокобезопасен.
type Manager struct {
	root context.Context

	mu    sync.Mutex
	nodes map[string]*node
	// order — фактический порядок запуска, нужен для обратной остановки.
	order []string
}

// New создаёт менеджер. Отмена root отменяет контексты всех узлов, но StopFunc
// вызываются только из Shutdown.
func New(root context.Context) *Manager {
	if root == nil {
		root = context.Background()
	}
	return &Manager{root: root, nodes: make(map[string]*node)}
}

// Register добавляет узел. Зависимости могут регистрироваться позже, но до StartAll.
func (m *Manager) Register(name string, deps []string, start StartFunc, stop StopFunc) error {
	if name == "" {
		return errors.New("lifecycle: empty node name")
	}
	uniqueDeps := slices.Compact(slices.Sorted(slices.Values(deps)))
	if slices.Contains(uniqueDeps, name) {
		return errors.Errorf("lifecycle: node %q cannot depend on itself", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.nodes[name]; exists {
		return errors.Errorf("lifecycle: node %q already registered", name)
	}
	m.nodes[name] = &node{name: name, deps: uniqueDeps, start: start, stop: stop}
	return nil
}

// StartAll запускает все узлы. Имена обходятся по алфавиту, поэтому порядок
// детерминирован. Первая ошибка прерывает запуск; уже поднятые узлы
// остаются запущенными до Shutdown.
func (m *Manager) StartAll() error {
	m.mu.Lock()
	names := make([]string, 0, len(m.nodes))
	for name := range m.nodes {
		names = append(names, name)
	}
	m.mu.Unlock()
	slices.Sort(names)

	for _, name := range names {
		if err := m.startNode(name); err != nil {
			return err
		}
	}
	logger.Debugf("lifecycle start order: %v", m.Order())
	return nil
}

func (m *Manager) startNode(name string) error {
	m.mu.Lock()
	n, exists := m.nodes[name]
	if !exists {
		m.mu.Unlock()
		return errors.Errorf("lifecycle: node %q not registered", name)
	}
	switch n.status {
	case statusRunning:
		m.mu.Unlock()
		return nil
	case statusStarting:
		m.mu.Unlock()
		return errors.Errorf("lifecycle: dependency cycle at %q", name)
	case statusFailed, statusStopped:
		m.mu.Unlock()
		return errors.Errorf("lifecycle: node %q cannot be restarted", name)
	}
	n.status = statusStarting
	m.mu.Unlock()

	for _, dep := range n.deps {
		if err := m.startNode(dep); err != nil {
			m.setStatus(n, statusFailed)
			return errors.Wrapf(err, "start %s", name)
		}
	}

	ctx, cancel := context.WithCancel(m.root)
	if n.start != nil {
		if err := n.start(ctx); err != nil {
			cancel()
			m.setStatus(n, statusFailed)
			logger.Errorf("failed to start node %s: %v", name, err)
			return errors.Wrapf(err, "start %s", name)
		}
	}

	m.mu.Lock()
	n.cancel = cancel
	n.status = statusRunning
	m.order = append(m.order, name)
	m.mu.Unlock()

	logger.Debugf("node %s is running", name)
	return nil
}

// Shutdown останавливает запущенные узлы в обратном порядке и объединяет ошибки.
// Повторный вызов безопасен.
func (m *Manager) Shutdown() error {
	order := m.Order()
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := m.stopNode(order[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) stopNode(name string) error {
	m.mu.Lock()
	n := m.nodes[name]
	if n == nil || n.status != statusRunning {
		m.mu.Unlock()
		return nil
	}
	n.status = statusStopped
	cancel, stop := n.cancel, n.stop
	m.mu.Unlock()

	logger.Debugf("stopping node %s", name)
	cancel()
	if stop == nil {
		return nil
	}
	if err := stop(); err != nil {
		m.setStatus(n, statusFailed)
		logger.Errorf("node %s stopped with error: %v", name, err)
		return errors.Wrapf(err, "stop %s", name)
	}
	return nil
}

// Order возвращает копию фактического порядка запуска.
func (m *Manager) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

func (m *Manager) setStatus(n *node, status nodeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.status = status
}
