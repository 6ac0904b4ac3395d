// этот код не является частью сервиса
// и нужен только для ручной отправки пакета загрузки через кафку в бд
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/asquebay/leadbase-service/internal/config"
	"github.com/asquebay/leadbase-service/internal/model"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	uploader := flag.String("uploader", "", "admin user id the batch is attributed to")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	uploadedBy := uuid.New()
	if *uploader != "" {
		id, err := uuid.Parse(*uploader)
		if err != nil {
			log.Fatalf("invalid uploader id: %v", err)
		}
		uploadedBy = id
	}

	now := time.Now().UTC()
	batch := model.ImportBatch{
		BatchID:    "manual-" + now.Format("20060102T150405"),
		UploadedBy: uploadedBy,
		FileName:   "manual.csv",
		Contacts: []model.Contact{
			{FirstName: "Ivan", LastName: "Ivanov", Email: "ivan.ivanov@example.com", JobTitle: "CTO", CompanyName: "Acme", Industry: "Software", Country: "DE", City: "Berlin"},
			{FirstName: "Anna", LastName: "Schmidt", Email: "anna.schmidt@example.com", JobTitle: "Head of Sales", CompanyName: "Acme", Industry: "Software", Country: "DE", City: "Munich"},
		},
		Companies: []model.Company{
			{Name: "Acme", Domain: "acme.example.com", Industry: "Software", EmployeeCount: 120, Country: "DE", City: "Berlin"},
		},
		CreatedAt: now,
	}

	message, err := json.Marshal(batch)
	if err != nil {
		log.Fatalf("failed to marshal batch: %v", err)
	}

	// настройки писателя (producer-а)
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.ImportTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	log.Printf("sending batch %s to %s...", batch.BatchID, cfg.Kafka.ImportTopic)
	err = writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(batch.BatchID),
			Value: message,
		},
	)
	if err != nil {
		log.Printf("failed to write message: %v", err)
		os.Exit(1)
	}
	fmt.Println("batch sent successfully!")
}
