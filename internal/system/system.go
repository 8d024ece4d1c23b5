package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// bytesPerWorker - примерный расход памяти одним воркером рендера кадров
// (несколько полноразмерных RGBA-кадров 1080x1920 плюс буферы ffmpeg).
const bytesPerWorker = 256 << 20

// RecommendedWorkers подбирает размер пула по числу логических ядер и
// свободной памяти. Если gopsutil не смог прочитать систему, берём GOMAXPROCS.
func RecommendedWorkers() int {
	cores, err := cpu.Counts(true)
	if err != nil || cores <= 0 {
		cores = runtime.GOMAXPROCS(0)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return max(cores, 1)
	}
	return workersFor(cores, vm.Available)
}

func workersFor(cores int, available uint64) int {
	byMem := int(available / bytesPerWorker)
	return max(min(cores, byMem), 1)
}

// ResolveWorkers возвращает configured, если он задан, иначе рекомендацию.
func ResolveWorkers(configured int) int {
	if configured > 0 {
		return configured
	}
	return RecommendedWorkers()
}

// FindLatestAudio ищет самый свежий аудиофайл в папке (фоновая музыка по умолчанию).
func FindLatestAudio(dir string) (string, error) {
	latest, err := findLatest(dir, []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"})
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("в папке %s не найдено аудио-файлов", dir)
	}
	return latest, nil
}

// FindLatestScript ищет самый свежий файл сценария (.txt/.json/.yaml).
func FindLatestScript(dir string) (string, error) {
	latest, err := findLatest(dir, []string{".txt", ".json", ".yaml", ".yml"})
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("в папке %s не найдено сценариев", dir)
	}
	return latest, nil
}

func findLatest(dir string, extensions []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := strings.ToLower(f.Name())
		matched := false
		for _, ext := range extensions {
			if strings.HasSuffix(name, ext) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}
	return latestFile, nil
}

func GetBestH264Encoder() string {
	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264)
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}
