// Package domain define contratos e tipos de domínio do gateway de conversão demo.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Quota, conversor externo, estatísticas, throttle e concorrência são descritos
// aqui como interfaces; as implementações ficam em infra.
package domain
