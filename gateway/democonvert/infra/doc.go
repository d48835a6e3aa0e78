// Package infra contém implementações concretas para os contratos do pacote domain.
//
// Exemplos:
//   - MemoryQuotaStore: quota diária por cliente em memória, com janitor
//   - HTTPConverter: cliente do serviço externo de conversão HTML -> PDF
//   - ThrottleStore: token bucket por cliente usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: contadores por desfecho
package infra
