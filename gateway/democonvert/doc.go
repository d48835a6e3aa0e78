// Package democonvert expõe o gateway de conversão demo via net/http.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (quota, conversor, stats) sem net/http
//   - application: casos de uso (quota + corrida contra o timeout, throttle, concorrência)
//   - infra: implementações concretas (quota em memória, cliente HTTP do conversor,
//     token bucket, semáforo, stats em memória/Redis)
//   - democonvert (este pacote): handler, middlewares, extração da chave do cliente
//     e tradução de desfechos para status/headers/JSON
//
// Fluxo de uma requisição POST {"html": ...}:
//
//  1. Extrai a chave do cliente (primeiro valor do X-Forwarded-For ou "unknown")
//  2. html == "check": só devolve a quota restante
//  3. Caso contrário, GatewayService.Convert reserva quota e chama o conversor
//  4. O desfecho vira 200 (PDF), 400, 429, 502, 503 ou 504
package democonvert
