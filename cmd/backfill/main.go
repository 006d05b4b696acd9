package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lujainibrahim/dyad-study/internal/repository"
	"github.com/lujainibrahim/dyad-study/pkg/database"
	"github.com/lujainibrahim/dyad-study/pkg/storage"
)

// 파일 싱크에 쌓인 채팅 로그를 chat_logs 테이블로 옮긴다
func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", envOr("CHAT_LOG_DIR", "chat_logs"), "chat log directory")
	recent := flag.Int("recent", 10, "number of recent sessions to list after import")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set in environment")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.EnsureChatLogSchema(ctx); err != nil {
		log.Fatal("Failed to prepare chat_logs table:", err)
	}

	files := repository.NewChatLogFileRepository(storage.NewStorage(*dir))
	rows := repository.NewChatLogPostgresRepository(db)

	pairIDs, err := files.ListPairIDs()
	if err != nil {
		log.Fatal("Failed to list chat logs:", err)
	}

	imported, failed := 0, 0
	for _, pairID := range pairIDs {
		record, err := files.FindByPairID(pairID)
		if err != nil || record == nil {
			fmt.Printf("skip %s: %v\n", pairID, err)
			failed++
			continue
		}
		if err := rows.Record(ctx, record); err != nil {
			fmt.Printf("skip %s: %v\n", pairID, err)
			failed++
			continue
		}
		imported++
	}
	fmt.Printf("Imported %d chat logs from %s (%d skipped)\n", imported, *dir, failed)

	total, err := rows.CountCompleted(ctx)
	if err != nil {
		log.Fatal("Failed to count chat logs:", err)
	}
	fmt.Printf("chat_logs now holds %d completed sessions\n", total)

	summaries, err := rows.ListRecent(ctx, *recent)
	if err != nil {
		log.Fatal("Failed to list chat logs:", err)
	}
	for _, s := range summaries {
		fmt.Printf("  - %s: %d messages (ended %s)\n", s.PairID, s.MessageCount, s.EndedAt.Format(time.RFC3339))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
