// Command fakebackend serves the document backend endpoints locally so the
// docchat client can be tried without the real service.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"docchat/internal/fakebackend"
)

func main() {
	addr := flag.String("addr", ":5000", "listen address")
	failAsk := flag.Bool("fail-ask", false, "answer every /ask with HTTP 500")
	flag.Parse()

	srv := fakebackend.New(true)
	if *failAsk {
		srv.Fail("/ask", http.StatusInternalServerError)
	}

	fmt.Fprintf(os.Stderr, "fake backend listening on %s\n", *addr)
	if err := srv.Start(*addr); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
