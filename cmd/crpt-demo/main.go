// crpt-demo envia N documentos de exemplo em paralelo por um único cliente
// da API de documentos, limitado pela janela deslizante.
//
// Uso:
//
//	crpt-demo --count 40 --limit 5 --window 1s --token $CRPT_TOKEN
//	crpt-demo --config demo.yaml --url http://localhost:8082
//
// Valores do arquivo --config são sobrescritos pelas flags passadas
// explicitamente. CRPT_TOKEN e CRPT_URL (também via .env) viram os padrões
// de --token e --url.
package main

import (
	"log"
	"os"
)

func main() {
	// antes de montar as flags: CRPT_TOKEN/CRPT_URL viram os padrões
	if err := loadEnv(); err != nil {
		log.Fatalf("crpt-demo: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("crpt-demo: %v", err)
		os.Exit(1)
	}
}
