package infra

import (
	"context"
	"sync"
	"time"

	"demo-gateway/gateway/democonvert/domain"
)

// MemoryQuotaStore guarda a quota diária por cliente apenas em memória.
//
// Não é persistida nem compartilhada entre processos: reiniciar o processo
// zera tudo. Todas as operações rodam sob um único mutex, então a sequência
// expirar+checar+reservar é atômica por chave.
type MemoryQuotaStore struct {
	mu      sync.Mutex
	records map[domain.Key]*domain.QuotaRecord

	limit        int
	now          func() time.Time
	day          domain.DayFunc
	maxClients   int
	cleanupEvery time.Duration
}

var _ domain.QuotaStore = (*MemoryQuotaStore)(nil)

type QuotaOption func(*MemoryQuotaStore)

func WithDailyLimit(n int) QuotaOption {
	return func(s *MemoryQuotaStore) { s.limit = n }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) QuotaOption {
	return func(s *MemoryQuotaStore) { s.now = now }
}

// WithLocation define o fuso de referência do dia de calendário.
func WithLocation(loc *time.Location) QuotaOption {
	return func(s *MemoryQuotaStore) { s.day = domain.DayIn(loc) }
}

// WithMaxClients limita o número de clientes rastreados. 0 = sem limite.
func WithMaxClients(n int) QuotaOption {
	return func(s *MemoryQuotaStore) { s.maxClients = n }
}

func WithQuotaCleanupEvery(d time.Duration) QuotaOption {
	return func(s *MemoryQuotaStore) { s.cleanupEvery = d }
}

func NewMemoryQuotaStore(opts ...QuotaOption) *MemoryQuotaStore {
	s := &MemoryQuotaStore{
		records:      make(map[domain.Key]*domain.QuotaRecord),
		limit:        domain.DefaultDailyLimit,
		now:          time.Now,
		day:          domain.DayIn(time.UTC),
		cleanupEvery: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limit <= 0 {
		s.limit = domain.DefaultDailyLimit
	}
	return s
}

func (s *MemoryQuotaStore) DailyLimit() int { return s.limit }

// Remaining é leitura pura: registro de outro dia conta como limite cheio,
// mas não é alterado aqui.
func (s *MemoryQuotaStore) Remaining(_ context.Context, key domain.Key) (int, error) {
	today := s.day(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Day != today {
		return s.limit, nil
	}
	return max(0, s.limit-rec.Count), nil
}

// Reserve rola o registro para hoje (mesmo que a chamada acabe negada) e
// prende uma vaga se ainda houver quota.
func (s *MemoryQuotaStore) Reserve(_ context.Context, key domain.Key) (domain.Reservation, error) {
	now := s.now()
	today := s.day(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(key, today)
	rec.LastSeen = now

	available := s.limit - rec.Count - rec.Reserved
	if available <= 0 {
		return domain.Reservation{Key: key, Day: today}, domain.ErrQuotaExceeded
	}
	rec.Reserved++
	return domain.Reservation{Key: key, Day: today, Remaining: available - 1}, nil
}

// Commit conta uma conversão bem-sucedida. É o único ponto que incrementa Count.
func (s *MemoryQuotaStore) Commit(_ context.Context, res domain.Reservation) (int, error) {
	now := s.now()
	today := s.day(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	sameDay := false
	if rec, ok := s.records[res.Key]; ok {
		sameDay = rec.Day == res.Day
	}
	rec := s.recordLocked(res.Key, today)
	rec.LastSeen = now
	// reserva de ontem já foi zerada pela virada do dia
	if sameDay && res.Day == today && rec.Reserved > 0 {
		rec.Reserved--
	}
	if rec.Count < s.limit {
		rec.Count++
	}
	return max(0, s.limit-rec.Count), nil
}

func (s *MemoryQuotaStore) Rollback(_ context.Context, res domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[res.Key]
	if !ok || rec.Day != res.Day || rec.Reserved == 0 {
		return nil
	}
	rec.Reserved--
	return nil
}

// Record devolve uma cópia do registro (testes/diagnóstico).
func (s *MemoryQuotaStore) Record(key domain.Key) (domain.QuotaRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return domain.QuotaRecord{}, false
	}
	return *rec, true
}

func (s *MemoryQuotaStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Cleanup remove registros de dias anteriores. Eles já contam como limite
// cheio, então apagar não muda nenhuma resposta.
func (s *MemoryQuotaStore) Cleanup() int {
	today := s.day(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropStaleLocked(today)
}

// StartJanitor limpa registros expirados periodicamente. Pare cancelando o contexto.
func (s *MemoryQuotaStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// recordLocked busca (ou cria) o registro e aplica a virada de dia. Requer s.mu.
func (s *MemoryQuotaStore) recordLocked(key domain.Key, today string) *domain.QuotaRecord {
	rec, ok := s.records[key]
	if !ok {
		s.makeRoomLocked(today)
		rec = &domain.QuotaRecord{Day: today}
		s.records[key] = rec
		return rec
	}
	if rec.Day != today {
		rec.Count = 0
		rec.Reserved = 0
		rec.Day = today
	}
	return rec
}

func (s *MemoryQuotaStore) dropStaleLocked(today string) int {
	n := 0
	for k, rec := range s.records {
		if rec.Day != today {
			delete(s.records, k)
			n++
		}
	}
	return n
}

func (s *MemoryQuotaStore) makeRoomLocked(today string) {
	if s.maxClients <= 0 || len(s.records) < s.maxClients {
		return
	}
	if s.dropStaleLocked(today) > 0 && len(s.records) < s.maxClients {
		return
	}

	// ainda cheio: descarta quem tem menos a perder. Primeiro quem não tem
	// reserva em voo, depois o menor Count (apagar um cliente no limite
	// devolveria a quota dele hoje mesmo), e por fim o visto há mais tempo.
	var (
		victim domain.Key
		best   *domain.QuotaRecord
	)
	for k, rec := range s.records {
		if best == nil || evictBefore(rec, best) {
			victim, best = k, rec
		}
	}
	if best != nil {
		delete(s.records, victim)
	}
}

func evictBefore(a, b *domain.QuotaRecord) bool {
	aBusy, bBusy := a.Reserved > 0, b.Reserved > 0
	if aBusy != bBusy {
		return !aBusy
	}
	if a.Count != b.Count {
		return a.Count < b.Count
	}
	return a.LastSeen.Before(b.LastSeen)
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}
