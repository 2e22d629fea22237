package search

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ranktune/ranktune/pkg/logger"
	"github.com/ranktune/ranktune/pkg/utils"
)

// BestTrial is one best-event recovered from the worker logs: the
// trial that was the study best at the moment the event was logged.
type BestTrial struct {
	Trial   int
	Result  float64
	Targets []float64
	Weights []float64
}

var (
	bestMarkerPattern    = regexp.MustCompile(`Best is trial (\d+) with value:`)
	trialFinishedPattern = regexp.MustCompile(`Trial (\d+) finished with result: (\S+)`)
)

// RecoverBestTrials re-derives the best-trial history by scanning the
// worker logs for "Best is trial N" markers and walking back to the
// matching trial's result/targets/weights group. Events are
// deduplicated by trial id across all logs, so a trial promoted to
// best in several workers is recorded once. A missing log file is
// retried and then skipped; a malformed event drops that event only.
func RecoverBestTrials(paths []string) []BestTrial {
	seen := make(map[int]bool)
	var out []BestTrial
	for _, path := range paths {
		lines, err := readLogLines(path)
		if err != nil {
			logger.Default.Warn("skipping unreadable trial log", "path", path, "error", err)
			continue
		}
		for i, line := range lines {
			m := bestMarkerPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			id, err := strconv.Atoi(m[1])
			if err != nil || seen[id] {
				continue
			}
			event, ok := recoverEvent(lines, i, id)
			if !ok {
				continue
			}
			seen[id] = true
			out = append(out, event)
		}
	}
	return out
}

// recoverEvent walks backward from a best marker to the trial's
// "finished with result" line, then reads the targets and weights
// lines that follow it.
func recoverEvent(lines []string, from, id int) (BestTrial, bool) {
	for j := from; j >= 0; j-- {
		m := trialFinishedPattern.FindStringSubmatch(lines[j])
		if m == nil {
			continue
		}
		gotID, err := strconv.Atoi(m[1])
		if err != nil || gotID != id {
			continue
		}
		if j+2 >= len(lines) {
			return BestTrial{}, false
		}
		result, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return BestTrial{}, false
		}
		targets, err := parseFloatList(lines[j+1], "targets:")
		if err != nil {
			return BestTrial{}, false
		}
		weights, err := parseFloatList(lines[j+2], "weights:")
		if err != nil {
			return BestTrial{}, false
		}
		return BestTrial{Trial: id, Result: result, Targets: targets, Weights: weights}, true
	}
	return BestTrial{}, false
}

// readLogLines reads a log file, retrying a missing file a few times
// before giving up. Workers may still be flushing when recovery starts
// in another process.
func readLogLines(path string) ([]string, error) {
	backoff := utils.NewConstantBackoff(100 * time.Millisecond)
	var data []byte
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		data, err = os.ReadFile(path)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		time.Sleep(backoff.NextDelay(attempt))
	}
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), nil
}

// parseFloatList parses a `prefix [a, b, c]` log line.
func parseFloatList(line, prefix string) ([]float64, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, prefix) {
		return nil, errors.New("search: unexpected line, want " + prefix)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
	if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
		return nil, errors.New("search: malformed list line")
	}
	body := strings.TrimSpace(rest[1 : len(rest)-1])
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
