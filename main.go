package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/gregLibert/hsm-gateway/internal/config"
	"github.com/gregLibert/hsm-gateway/internal/httpapi"
	"github.com/gregLibert/hsm-gateway/internal/logging"
	"github.com/gregLibert/hsm-gateway/pkg/asn1"
	"github.com/gregLibert/hsm-gateway/pkg/hsm"
	"github.com/gregLibert/hsm-gateway/pkg/thales"
	"github.com/sirupsen/logrus"
)

// checkRSABits is the size of the key pair generated by the startup check.
const checkRSABits = 1024

func main() {
	cfg := config.MustLoad()

	log, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("Error configuring logs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 1. HSM Setup ---
	opts, audit := sessionOptions(cfg, log)
	if audit != nil {
		defer func() {
			if err := audit.Close(); err != nil {
				log.WithError(err).Warn("Failed to close audit file")
			}
		}()
	}

	// --- 2. Startup Check ---
	if err := startupCheck(ctx, cfg.HSM.Addr(), cfg.HSM.StartupKeyGen, opts); err != nil {
		log.WithError(err).Warn("Startup check failed")
	}

	pool, err := hsm.DialPool(ctx, cfg.HSM.Addr(), cfg.HSM.PoolSize, opts...)
	if err != nil {
		log.WithError(err).Fatal("Error connecting to the HSM")
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.WithError(err).Warn("Failed to close HSM sessions")
		}
	}()
	log.WithFields(logrus.Fields{"addr": cfg.HSM.Addr(), "sessions": pool.Len()}).Info("HSM pool ready")

	// --- 3. HTTP Facade ---
	binding.EnableDecoderDisallowUnknownFields = true
	handler := httpapi.NewHandler(thales.NewClient(pool), log)
	srv := &http.Server{
		Addr:              cfg.HTTPServ.ServerAddr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
}

// =========================================================================
// Helper Functions
// =========================================================================

// sessionOptions turns the configuration into session options. The returned
// audit log, when not nil, must be closed by the caller.
func sessionOptions(cfg *config.Config, log *logrus.Logger) ([]hsm.Option, *hsm.AuditLog) {
	opts := []hsm.Option{
		hsm.WithHeader(hsm.Header(cfg.HSM.Header)),
		hsm.WithTimeout(cfg.HSM.Timeout),
		hsm.WithConnectTimeout(cfg.HSM.ConnectTimeout),
		hsm.WithLogger(log),
	}
	if cfg.HSM.StrictFraming {
		opts = append(opts, hsm.WithStrictFraming())
	}

	if cfg.Audit.File == "" {
		return opts, nil
	}
	audit, err := hsm.OpenAuditFile(cfg.Audit.File)
	if err != nil {
		log.WithError(err).Fatal("Error opening audit file")
	}
	return append(opts, hsm.WithAudit(audit)), audit
}

// startupCheck requests a random number on a dedicated traced session and prints
// the reports. With keyGen it also generates a ZPK and an RSA key pair, printing
// the ASN.1 dump of its public key: both consume HSM key material.
func startupCheck(ctx context.Context, addr string, keyGen bool, opts []hsm.Option) error {
	session, err := hsm.Dial(ctx, addr, append(opts, hsm.WithTrace())...)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer session.Close()

	client := thales.NewClient(session)

	fmt.Println("\n=============================================")
	fmt.Println(" Step 1: GENERATE RANDOM (C6)")
	fmt.Println("=============================================")
	random, err := client.GenerateRandom(ctx)
	if err != nil {
		return err
	}
	fmt.Printf(">> Random: %s\n", random)

	if !keyGen {
		fmt.Println(session.Trace().Describe())
		return nil
	}

	fmt.Println("\n=============================================")
	fmt.Println(" Step 2: GENERATE ZPK (A0)")
	fmt.Println("=============================================")
	res, err := client.GenerateKey(ctx, thales.KeyTypeZPK)
	if res != nil {
		fmt.Println(res.Describe())
	}
	if err != nil {
		return err
	}

	fmt.Println("\n=============================================")
	fmt.Printf(" Step 3: GENERATE RSA-%d KEY PAIR (EI)\n", checkRSABits)
	fmt.Println("=============================================")
	cert, err := client.GenerateRSAKeyPair(ctx, checkRSABits, 0)
	if err != nil {
		return err
	}
	fmt.Println(cert.Describe())

	tree, err := asn1.ParseTree(cert.Public.Bytes())
	if err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	fmt.Println(tree.Describe())

	fmt.Println(session.Trace().Describe())
	return nil
}
