package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/snake-soft/pg-search/pkg/filter"
	"github.com/snake-soft/pg-search/pkg/messaging"
	"github.com/snake-soft/pg-search/pkg/search"
	"github.com/snake-soft/pg-search/pkg/server"
	"github.com/snake-soft/pg-search/pkg/storage"
	"github.com/snake-soft/pg-search/pkg/tracking"
	"github.com/snake-soft/pg-search/pkg/types"
)

var enableProfiling = flag.Bool("profiling", true, "enable profiling endpoints")
var databaseUrl = os.Getenv("DATABASE_URL")
var rabbitUrl = os.Getenv("RABBIT_URL")
var rabbitVHost = os.Getenv("RABBIT_HOST")
var redisUrl = os.Getenv("REDIS_URL")
var redisPassword = os.Getenv("REDIS_PASSWORD")
var sessionSecret = os.Getenv("SESSION_SECRET")
var listenAddress = ":8080"
var debugAddress = ":8081"

var rabbitConfig = messaging.RabbitConfig{
	Url:    rabbitUrl,
	VHost:  rabbitVHost,
	Prefix: "psearch",
}

var done = false

func registerFields(src *storage.Source) {
	src.RegisterField(types.FieldInfo{Code: "weight", Label: "Weight"})
	src.RegisterField(types.FieldInfo{Code: "volume", Label: "Volume"})
	src.RegisterField(types.FieldInfo{Code: "vessel", Label: "Vessel", Kind: types.FieldRelated})
	src.RegisterField(types.FieldInfo{Code: "brand", Label: "Brand", Kind: types.FieldRelated})
	src.RegisterRelation("vessel", storage.Relation{Table: "vessels", LabelColumn: "name"})
	src.RegisterRelation("brand", storage.Relation{Table: "brands", LabelColumn: "name"})
}

func main() {
	flag.Parse()

	if databaseUrl == "" {
		log.Fatalf("No database url provided")
	}
	db, err := sql.Open("postgres", databaseUrl)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := storage.Migrate(context.Background(), db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	src := storage.NewSource(db)
	registerFields(src)

	srv := &server.WebServer{
		Composer: &search.Composer{
			Source: src,
			Config: filter.Config{
				AttachedFields: []string{"brand", "vessel", "weight", "volume"},
			},
		},
		Sessions:      server.NewSessionManager(sessionSecret),
		Pricer:        &storage.StockPricer{Db: db},
		Items:         &storage.SummaryLoader{Db: db},
		ListenAddress: listenAddress,
	}

	if redisUrl != "" {
		srv.Cache = server.NewCache(redisUrl, redisPassword, 0)
		log.Printf("Cache enabled, url: %s", redisUrl)
	}

	var tracker *tracking.RabbitTracking
	if rabbitUrl != "" {
		conn, err := amqp.DialConfig(rabbitUrl, amqp.Config{Vhost: rabbitVHost})
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			log.Fatalf("Failed to open RabbitMQ channel: %v", err)
		}
		err = messaging.ListenForProductChanges(ch, &rabbitConfig, func(change messaging.ProductChange) {
			log.Printf("Catalogue change for %d products, flushing cache", len(change.Ids))
			if srv.Cache != nil {
				srv.Cache.Flush()
			}
		})
		if err != nil {
			log.Fatalf("Failed to listen for catalogue changes: %v", err)
		}

		rangeCh, err := conn.Channel()
		if err != nil {
			log.Fatalf("Failed to open RabbitMQ channel: %v", err)
		}
		err = messaging.ListenForRangeChanges(rangeCh, &rabbitConfig, func(change messaging.RangeChange) {
			log.Printf("Offer range change for %d ranges, flushing cache", len(change.Ids))
			if srv.Cache != nil {
				srv.Cache.Flush()
			}
		})
		if err != nil {
			log.Fatalf("Failed to listen for range changes: %v", err)
		}
		log.Printf("Listening for catalogue changes on %s", rabbitUrl)

		tracker, err = tracking.NewRabbitTracking(rabbitUrl, rabbitConfig.Prefix)
		if err != nil {
			log.Printf("Search tracking disabled: %v", err)
		} else {
			srv.Tracking = tracker
		}
	}

	done = true

	debugMux := http.NewServeMux()
	debugMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !done {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	debugMux.Handle("/metrics", promhttp.Handler())

	if enableProfiling != nil && *enableProfiling {
		log.Println("Profiling enabled")
		debugMux.HandleFunc("/debug/pprof/", pprof.Index)
		debugMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		debugMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		debugMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		debugMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	go func() {
		log.Printf("Starting debug server %v", debugAddress)
		log.Fatal(http.ListenAndServe(debugAddress, debugMux))
	}()

	srv.Serve(
		func(ctx context.Context) error {
			if tracker != nil {
				return tracker.Close()
			}
			return nil
		},
		func(ctx context.Context) error {
			if srv.Cache != nil {
				return srv.Cache.Close()
			}
			return nil
		},
		func(ctx context.Context) error {
			return db.Close()
		},
	)
}
