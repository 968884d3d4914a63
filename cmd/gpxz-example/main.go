package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/twpayne/go-gpxz"
)

func parseCoord(latStr, lonStr string) (gpxz.Coord, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return gpxz.Coord{}, err
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return gpxz.Coord{}, err
	}
	return gpxz.Coord{Lat: lat, Lon: lon}, nil
}

func parseArgCoords(args []string) ([]gpxz.Coord, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, errors.New("syntax: gpxz-example [flags] latitude longitude [latitude longitude ...]")
	}
	coords := make([]gpxz.Coord, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		coord, err := parseCoord(args[i], args[i+1])
		if err != nil {
			return nil, err
		}
		coords = append(coords, coord)
	}
	return coords, nil
}

func readCSVCoords(path string) ([]gpxz.Coord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	coords := make([]gpxz.Coord, 0, len(records))
	for i, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("%s:%d: expected latitude,longitude", path, i+1)
		}
		coord, err := parseCoord(record[0], record[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		coords = append(coords, coord)
	}
	return coords, nil
}

func run() error {
	_ = godotenv.Load()

	apiKey := flag.String("api-key", os.Getenv("GPXZ_API_KEY"), "GPXZ API key")
	baseURL := flag.String("base-url", gpxz.DefaultBaseURL, "API endpoint")
	batchSize := flag.Int("batch-size", gpxz.DefaultMaxBatchSize, "maximum coordinates per request")
	csvPath := flag.String("csv", "", "CSV file of latitude,longitude rows")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var coords []gpxz.Coord
	if *csvPath != "" {
		coords, err = readCSVCoords(*csvPath)
	} else {
		coords, err = parseArgCoords(flag.Args())
	}
	if err != nil {
		return err
	}

	client, err := gpxz.NewClient(*apiKey,
		gpxz.WithBaseURL(*baseURL),
		gpxz.WithMaxBatchSize(*batchSize),
	)
	if err != nil {
		return err
	}

	logger.Info("querying elevations",
		zap.Int("coords", len(coords)),
		zap.Int("batch_size", *batchSize),
	)

	results, err := client.Points(context.Background(), coords)
	if err != nil {
		var batchError *gpxz.BatchError
		if errors.As(err, &batchError) {
			logger.Error("batch failed",
				zap.Int("batch", batchError.Index),
				zap.Error(batchError.Err),
			)
		}
		return err
	}

	for _, result := range results {
		fmt.Printf("%v,%v,%v,%s\n", result.Lat, result.Lon, result.Elevation, result.DataSource)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
