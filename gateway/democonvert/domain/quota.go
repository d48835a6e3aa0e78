package domain

import (
	"context"
	"time"
)

// Key identifica um cliente (ex: primeiro IP do X-Forwarded-For).
// Não é credencial: é best-effort e pode ser forjada.
type Key string

// DefaultDailyLimit é o número de conversões bem-sucedidas por cliente por dia.
const DefaultDailyLimit = 3

// DayLayout é o formato do dia de calendário usado nos registros de quota.
const DayLayout = "2006-01-02"

// QuotaRecord é o uso de um cliente no dia corrente.
//
// Invariantes: 0 <= Count <= limite diário; um registro cujo Day difere do dia
// atual está expirado e deve ser tratado como Count=0 antes de qualquer leitura
// ou escrita.
type QuotaRecord struct {
	Count    int
	Reserved int
	Day      string
	LastSeen time.Time
}

// Reservation é uma vaga de quota presa enquanto a chamada ao upstream está em voo.
type Reservation struct {
	Key Key
	Day string
	// Remaining é o que restava (já descontada esta reserva) no momento da admissão.
	Remaining int
}

// QuotaStore guarda o uso diário por cliente.
//
// Reserve faz expiração + checagem + reserva como uma unidade atômica.
// Commit conta a conversão (Count+1) e devolve o restante; Rollback apenas
// libera a reserva. Nenhum caminho de erro altera Count.
type QuotaStore interface {
	Remaining(ctx context.Context, key Key) (int, error)
	Reserve(ctx context.Context, key Key) (Reservation, error)
	Commit(ctx context.Context, res Reservation) (int, error)
	Rollback(ctx context.Context, res Reservation) error
}

// DayFunc devolve o dia de calendário (DayLayout) de um instante.
type DayFunc func(time.Time) string

// DayIn fixa o fuso de referência do "dia". nil equivale a UTC.
func DayIn(loc *time.Location) DayFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(t time.Time) string { return t.In(loc).Format(DayLayout) }
}
