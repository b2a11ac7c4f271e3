package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolregistry/internal/config"
	"schoolregistry/internal/pushclient"
	"schoolregistry/internal/queue"
	"schoolregistry/internal/registry"
	"schoolregistry/internal/store"
)

// Worker consumes registration and approval events, writes parent
// notifications, and forwards them to the push gateway.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "schoolregistry:events")
	}

	repo := registry.NewRepository(db.Client)
	push := pushclient.New(cfg.PushGatewayURL, cfg.PushSkip)

	if !cfg.PushSkip {
		if err := push.Health(ctx); err != nil {
			log.Printf("WARNING: push gateway not available: %v", err)
			log.Println("Worker will retry delivery when events arrive")
		} else {
			log.Println("Push gateway connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case queue.TypeRegistration:
			handleRegistration(ctx, repo, push, msg.Body)
		case queue.TypeApproval:
			handleApproval(ctx, repo, push, msg.Body)
		}
		time.Sleep(10 * time.Millisecond)
	}

	log.Println("worker stopped")
}

func handleRegistration(ctx context.Context, repo *registry.Repository, push *pushclient.Client, body []byte) {
	var evt queue.RegistrationEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		log.Printf("bad registration event: %v", err)
		return
	}
	log.Printf("processing registration for lrn %s (%s)", evt.LRN, evt.Status)

	title := "Registration received"
	text := fmt.Sprintf("Registration for %s was %s.", evt.StudentName, evt.Status)
	for _, parentID := range evt.ParentIDs {
		if _, err := repo.InsertNotification(ctx, registry.Notification{
			ParentID: parentID,
			Title:    title,
			Body:     text,
		}); err != nil {
			log.Printf("notification insert failed for parent %d: %v", parentID, err)
			continue
		}
		parent, err := repo.ParentByID(ctx, parentID)
		if err != nil || parent == nil {
			continue
		}
		if _, err := push.Send(ctx, pushclient.Notification{
			To:    parent.ContactNumber,
			Title: title,
			Body:  text,
		}); err != nil {
			log.Printf("push failed for parent %d: %v", parentID, err)
		}
	}
}

func handleApproval(ctx context.Context, repo *registry.Repository, push *pushclient.Client, body []byte) {
	var evt queue.ApprovalEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		log.Printf("bad approval event: %v", err)
		return
	}
	log.Printf("processing approval for guardian %d (%s)", evt.GuardianID, evt.Status)

	// Guardian claims carry only the student's name, not the LRN.
	student, parents, err := repo.StudentByName(ctx, evt.StudentName)
	if err != nil || student == nil {
		return
	}
	title := "Guardian " + evt.Status
	text := fmt.Sprintf("Guardian %s was %s for %s.", evt.GuardianName, evt.Status, evt.StudentName)
	for _, p := range parents {
		if _, err := repo.InsertNotification(ctx, registry.Notification{
			ParentID: p.ID,
			Title:    title,
			Body:     text,
		}); err != nil {
			log.Printf("notification insert failed for parent %d: %v", p.ID, err)
			continue
		}
		if _, err := push.Send(ctx, pushclient.Notification{
			To:    p.ContactNumber,
			Title: title,
			Body:  text,
		}); err != nil {
			log.Printf("push failed for parent %d: %v", p.ID, err)
		}
	}
}
