// Package application contém os casos de uso do gateway de conversão demo:
// quota diária + chamada limitada ao conversor (GatewayService), throttle por
// cliente (ThrottleService) e limite de concorrência (ConcurrencyService).
//
// Ele depende apenas do pacote domain e não conhece net/http.
package application
