//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	tls "github.com/markkurossi/tls13/crypto/tls"
)

func main() {
	addr := flag.String("addr", "", "host:port to connect to")
	serverName := flag.String("server-name", "", "TLS server_name (SNI); defaults to the connection host")
	alpn := flag.String("alpn", "", "comma-separated ALPN protocols to offer")
	message := flag.String("msg", "ping", "application data to send once connected")
	verbose := flag.Bool("v", false, "enable debug trace logging")
	timeout := flag.Duration("timeout", 10*time.Second, "dial timeout")
	flag.Parse()

	log.SetFlags(0)

	if len(*addr) == 0 {
		log.Fatalf("usage: tls13-client -addr host:port")
	}

	host, _, err := net.SplitHostPort(*addr)
	if err != nil {
		log.Fatalf("invalid -addr %q: %v", *addr, err)
	}
	name := *serverName
	if len(name) == 0 {
		name = host
	}

	var protocols []string
	if len(*alpn) > 0 {
		protocols = strings.Split(*alpn, ",")
	}

	var logger *zap.Logger
	if *verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatalf("create logger: %v", err)
		}
	} else {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	cfg := &tls.Config{
		ServerName:     name,
		ALPNProtocols:  protocols,
		Logger:         logger,
		VerifyCallback: tls.VerifyChain(name),
	}

	client, err := tls.NewConnection(conn, cfg)
	if err != nil {
		log.Fatalf("new connection: %v", err)
	}

	result, err := client.Handshake()
	if err != nil {
		log.Fatalf("handshake: %v", err)
	}
	fmt.Printf("connected: cipher_suite=%v alpn=%q hello_retry=%v certs=%d\n",
		result.CipherSuite, result.NegotiatedALPN, result.HelloRetryHappened,
		len(result.PeerCertificates))

	if err := client.Send([]byte(*message)); err != nil {
		log.Fatalf("send: %v", err)
	}
	reply, err := client.Recv()
	if err != nil {
		log.Fatalf("recv: %v", err)
	}
	fmt.Printf("reply: %s\n", reply)

	if err := client.Close(); err != nil {
		log.Fatalf("close: %v", err)
	}
}
