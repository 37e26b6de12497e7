/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll run engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Build the engine (rates, tax tables, holiday calendar, paystubs)
  4. Optionally seed demo fixtures
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: payroll.db)
           Use ":memory:" for in-memory database
  -seed    Populate demo pay groups and employees on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Fresh in-memory database with demo fixtures
  ./server -db=":memory:" -seed

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/rates"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "payroll.db", "SQLite database path")
	seed := flag.Bool("seed", false, "populate demo pay groups and employees")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if *seed {
		if err := seedFixtures(context.Background(), store); err != nil {
			log.Fatalf("Failed to seed fixtures: %v", err)
		}
		log.Println("Seeded demo pay groups and employees")
	}

	// Build the engine
	engine := payroll.NewEngine(payroll.EngineConfig{
		Runs:        store,
		Directory:   store,
		LedgerStore: store,
		Rates:       rates.NewStatic2025(),
		Tax:         rates.NewEvaluator2025(),
		Holidays:    rates.NewCalendar(),
		Paystubs:    logPaystubs{},
	})

	// Create router
	handler := api.NewHandler(engine, store)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// logPaystubs stands in for a real delivery integration. Every stub is
// reported sent after being logged.
type logPaystubs struct{}

func (logPaystubs) GenerateAndSend(_ context.Context, records []*payroll.PayrollRecord) ([]payroll.DeliveryResult, error) {
	results := make([]payroll.DeliveryResult, 0, len(records))
	for _, rec := range records {
		log.Printf("paystub: run=%s employee=%s net=%s", rec.RunID, rec.EmployeeID, rec.NetPay)
		results = append(results, payroll.DeliveryResult{
			EmployeeID: rec.EmployeeID,
			Status:     payroll.DeliverySent,
		})
	}
	return results, nil
}
