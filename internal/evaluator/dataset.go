package evaluator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/workcell-labs/foundry/internal/types"
)

// maxLineBytes bounds a single dataset line; examples with hundreds of
// candidates still fit well under this.
const maxLineBytes = 4 * 1024 * 1024

// LoadDataset reads a JSON-lines dataset file, one Example per line. Blank
// lines are skipped. A malformed line is a dataset error, not something to
// silently drop: evaluation results over a partial dataset would be
// misleading.
func LoadDataset(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.WrapError(types.DATASET_READ_FAILED,
			fmt.Sprintf("failed to open dataset %s", path), err)
	}
	defer f.Close()

	var examples []Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ex Example
		if err := json.Unmarshal(raw, &ex); err != nil {
			return nil, types.WrapError(types.DATASET_PARSE_FAILED,
				fmt.Sprintf("malformed example at %s:%d", path, line), err)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, types.WrapError(types.DATASET_READ_FAILED,
			fmt.Sprintf("failed to read dataset %s", path), err)
	}
	return examples, nil
}
