package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivlev/img2shorts/internal/audio"
	"github.com/ivlev/img2shorts/internal/config"
	"github.com/ivlev/img2shorts/internal/engine"
	"github.com/ivlev/img2shorts/internal/failure"
	"github.com/ivlev/img2shorts/internal/system"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	// Создаем нужные директории, если их нет
	for _, d := range []string{"input/images", "input/scripts", "input/audio", "output"} {
		os.MkdirAll(d, 0755)
	}

	configPtr := flag.String("config", "", "YAML-файл настроек (по умолчанию встроенные значения + SHORTS_* из окружения)")
	imagesPtr := flag.String("images", "", "Папка с изображениями, файл изображения или PDF (по умолчанию: input/images/)")
	scriptPtr := flag.String("script", "", "Сценарий .txt/.json/.yaml (по умолчанию: самый свежий файл в input/scripts/)")
	musicPtr := flag.String("music", "", "Фоновая музыка (по умолчанию: самый свежий файл в input/audio/)")
	noMusicPtr := flag.Bool("no-music", false, "Не добавлять фоновую музыку")
	noTTSPtr := flag.Bool("no-tts", false, "Не озвучивать сценарий (только субтитры)")
	templatePtr := flag.String("template", "", "Шаблон обработки: basic, modern, vintage, news, story, product")
	outputPtr := flag.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	durationPtr := flag.Float64("duration", 0, "Подогнать длительность видео (сек), 0 - по сценарию")
	fitPtr := flag.Bool("fit-narration", false, "Подогнать длительность сцен под озвучку")
	batchPtr := flag.String("batch", "", "Манифест пакетной генерации (.yaml/.json)")
	reportPtr := flag.String("report", "", "Куда записать отчет пакетной генерации (.yaml/.json)")
	workersPtr := flag.Int("batch-workers", 2, "Сколько видео генерировать параллельно")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	cfg.BuildVersion = version
	if *noTTSPtr {
		cfg.Audio.TTS.Enabled = false
	}
	logger := cfg.NewLogger()

	gen := engine.NewGenerator(cfg, logger)

	if *batchPtr != "" {
		os.Exit(runBatch(ctx, gen, *batchPtr, *reportPtr, *workersPtr))
	}

	req := engine.Request{
		Images:         *imagesPtr,
		Script:         *scriptPtr,
		Music:          *musicPtr,
		Output:         *outputPtr,
		Duration:       *durationPtr,
		FitToNarration: *fitPtr,
		Template:       *templatePtr,
	}
	if req.Images == "" {
		req.Images = "input/images"
	}
	if req.Script == "" {
		if latest, err := system.FindLatestScript("input/scripts"); err == nil {
			req.Script = latest
			fmt.Printf("[*] Выбран сценарий: %s\n", req.Script)
		}
	}
	if req.Music == "" && !*noMusicPtr {
		if latest, err := system.FindLatestAudio("input/audio"); err == nil {
			req.Music = latest
			fmt.Printf("[*] Выбрана музыка: %s\n", req.Music)
			if d, err := audio.MediaDuration(latest); err == nil {
				fmt.Printf("[*] Длительность музыки: %.2fs\n", d)
			}
		}
	}
	if req.Output == "" {
		req.Output = defaultOutput(req)
	}

	fmt.Println("--- [IMG2SHORTS] ---")
	fmt.Printf("[*] Источник: %s | Сценарий: %s\n", req.Images, orDash(req.Script))
	fmt.Printf("[*] Разрешение: %dx%d @ %d FPS | Переход: %s %.2fs\n",
		cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS, cfg.Image.Transition, cfg.Image.TransitionDuration)
	fmt.Println("--------------------")

	res, err := gen.Generate(ctx, req)
	if err != nil {
		var fe *failure.Error
		if errors.As(err, &fe) {
			log.Fatalf("[-] Ошибка (%s): %v", fe.Kind, err)
		}
		log.Fatalf("[-] Ошибка генерации: %v", err)
	}

	if res.OverSize {
		fmt.Printf("[!] Файл больше лимита %.0f МБ: %.2f МБ\n", cfg.Output.MaxFileSizeMB, float64(res.SizeBytes)/(1024*1024))
	}
	if res.Subtitles != "" {
		fmt.Printf("[*] Субтитры: %s\n", res.Subtitles)
	}
	fmt.Printf("[+++] Успех! Результат: %s (%.2fs, %s)\n", res.Output, res.Duration, res.Elapsed.Round(time.Millisecond))
}

func runBatch(ctx context.Context, gen *engine.Generator, manifest, reportPath string, workers int) int {
	reqs, err := engine.LoadManifest(manifest)
	if err != nil {
		log.Printf("[-] Ошибка манифеста: %v", err)
		return 1
	}
	fmt.Printf("[*] Пакетная генерация: %d видео, параллельно %d\n", len(reqs), workers)

	report := engine.RunBatch(ctx, gen, reqs, workers)
	for _, r := range report.Results {
		if r.Status == engine.StatusOK {
			fmt.Printf("[>] %d: %s\n", r.Index+1, r.Output)
		} else {
			fmt.Printf("[!] %d: %s (%s)\n", r.Index+1, r.Error, r.Kind)
		}
	}

	if reportPath != "" {
		if err := engine.WriteReport(report, reportPath); err != nil {
			fmt.Printf("[!] Не удалось записать отчет: %v\n", err)
		}
	}

	fmt.Printf("[+++] Готово: %d успешно, %d с ошибками\n", report.Succeeded, report.Failed)
	if report.Failed > 0 {
		return 1
	}
	return 0
}

func defaultOutput(req engine.Request) string {
	nameSource := req.Images
	if req.Script != "" {
		nameSource = req.Script
	}
	baseName := filepath.Base(nameSource)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
