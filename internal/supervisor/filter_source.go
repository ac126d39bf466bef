package supervisor

import (
	"os"

	"github.com/kklingenberg/docker-job-dispatcher/internal/filter"
)

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func filterDefaultSource() (string, error) {
	return filter.DefaultText(), nil
}
