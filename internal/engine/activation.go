package engine

import (
	"sync"
	"time"

	"github.com/xela07ax/logitower-console/internal/domain"
)

// Activation — транзиентный сигнал "конвейер сейчас активен".
type Activation struct {
	Active bool             `json:"active"`
	Phase  domain.OODAPhase `json:"phase,omitempty"`
	Label  string           `json:"label,omitempty"`
}

// PhaseActivator выводит сигнал активности из прихода событий: каждое событие
// переводит машину в ACTIVE(фаза, заголовок) и перезапускает таймер гашения.
// Быстрая серия событий дает один непрерывный ACTIVE-интервал, а не несколько
// (последнее событие побеждает). Истечение таймера без новых событий — IDLE.
type PhaseActivator struct {
	mu      sync.Mutex
	dwell   time.Duration
	state   Activation
	timer   *time.Timer
	gen     uint64 // отсечка устаревших срабатываний таймера
	stopped bool
}

func NewPhaseActivator(dwell time.Duration) *PhaseActivator {
	return &PhaseActivator{dwell: dwell}
}

// OnEvent переводит машину в ACTIVE и заново взводит окно гашения.
func (p *PhaseActivator) OnEvent(ev domain.AgentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	p.gen++
	gen := p.gen
	p.state = Activation{Active: true, Phase: ev.OODAPhase, Label: ev.Title}

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.dwell, func() { p.expire(gen) })
}

func (p *PhaseActivator) expire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Пока таймер летел, пришло новое событие — гашение уже неактуально
	if p.stopped || gen != p.gen {
		return
	}
	p.state = Activation{}
}

// State возвращает текущий сигнал активности.
func (p *PhaseActivator) State() Activation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stop гасит сигнал и отменяет таймер. Вызывается при завершении сессии.
func (p *PhaseActivator) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.state = Activation{}
}
