package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"chat-insights/internal/adapters/exporter"
	"chat-insights/internal/bot"
	"chat-insights/internal/cache"
	"chat-insights/internal/pkg/term"
)

func main() {
	var (
		serverAddr string
		encrypt    bool
		reuse      bool
		format     string
		interval   time.Duration
		topN       int
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.BoolVar(&encrypt, "encrypt", false, "Encrypt upload with the server public key")
	flag.BoolVar(&reuse, "reuse", true, "Ask the server for a cached report before uploading")
	flag.StringVar(&format, "format", "auto", "Output format: auto, table or json")
	flag.DurationVar(&interval, "poll", 2*time.Second, "Task status polling interval")
	flag.IntVar(&topN, "top", 5, "Number of emotions, emojis and words in tables")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Usage: client [flags] <chat.txt>")
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Не удалось прочитать файл %s: %v", path, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []bot.ClientOption
	if encrypt {
		opts = append(opts, bot.WithEncryption())
	}
	client := bot.NewServerClient(serverAddr, 60*time.Second, opts...)

	report, err := analyze(ctx, client, filepath.Base(path), data, reuse, interval)
	if err != nil {
		log.Fatal(err)
	}

	tty := term.NewTerminal()
	if format == "auto" {
		format = "json"
		if tty.Interactive() {
			format = "table"
		}
	}

	switch format {
	case "table":
		for _, t := range exporter.SummaryTables(report, topN) {
			fmt.Println(t.Render())
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("Не удалось вывести отчет: %v", err)
		}
	default:
		log.Fatalf("Неизвестный формат: %s", format)
	}
}

// analyze пробует взять отчет из кеша сервера по хешу содержимого и при
// промахе загружает файл.
func analyze(ctx context.Context, c *bot.ServerClient, name string, data []byte, reuse bool, interval time.Duration) (*exporter.ReportDTO, error) {
	if reuse {
		hash, err := cache.HashReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		resp, err := c.StartTaskByHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("не удалось отправить запрос: %w", err)
		}
		status, err := wait(ctx, c, resp.TaskID, interval)
		if err != nil {
			return nil, err
		}
		if status.Status == "completed" {
			fmt.Fprintln(os.Stderr, "Отчет получен из кеша сервера.")
			return c.GetTaskResult(ctx, resp.TaskID)
		}
	}

	resp, err := c.StartTask(ctx, name, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("не удалось отправить файл: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Задача создана с идентификатором: %s\n", resp.TaskID)

	status, err := wait(ctx, c, resp.TaskID, interval)
	if err != nil {
		return nil, err
	}
	if status.Status != "completed" {
		return nil, fmt.Errorf("задача не выполнена (%s): %s", status.ErrorCode, status.ErrorMessage)
	}
	return c.GetTaskResult(ctx, resp.TaskID)
}

// wait опрашивает статус задачи до completed или failed.
func wait(ctx context.Context, c *bot.ServerClient, taskID string, interval time.Duration) (*bot.TaskStatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("не удалось опросить статус задачи: %w", err)
		}
		switch status.Status {
		case "completed", "failed":
			return status, nil
		}
		fmt.Fprintf(os.Stderr, "Статус задачи: %s\n", status.Status)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
