package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
)

// CSVのヘッダ（順不同）
var productColumns = []string{"id", "title", "description", "price", "location"}

// 取り込み結果
type Result struct {
	Imported int
	Skipped  int
	//既に商品があったので何もしなかった
	AlreadySeeded bool
}

// 商品テーブルが空のときだけCSVから初期データを入れる
type ProductImporter struct {
	products repository.ProductRepository
	log      *slog.Logger
}

func NewProductImporter(products repository.ProductRepository, log *slog.Logger) *ProductImporter {
	return &ProductImporter{products: products, log: log}
}

// ImportFile はpathのCSVを読む。ファイルが無ければ何もしない
func (im *ProductImporter) ImportFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		im.log.Warn("product csv not found, skipping import", slog.String("path", path))
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return im.Import(ctx, f)
}

func (im *ProductImporter) Import(ctx context.Context, r io.Reader) (Result, error) {
	existing, err := im.products.Count(ctx)
	if err != nil {
		return Result{}, err
	}
	if existing > 0 {
		im.log.Info("products already present, skipping import", slog.Int64("count", existing))
		return Result{AlreadySeeded: true}, nil
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	var batch []model.Product
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			im.log.Warn("skip unreadable csv row", slog.Int("line", line), slog.Any("error", err))
			res.Skipped++
			continue
		}

		p, err := parseProduct(rec, index)
		if err != nil {
			im.log.Warn("skip invalid csv row", slog.Int("line", line), slog.Any("error", err))
			res.Skipped++
			continue
		}
		batch = append(batch, p)
	}

	if err := im.products.CreateBatch(ctx, batch); err != nil {
		return Result{}, fmt.Errorf("insert products: %w", err)
	}
	res.Imported = len(batch)

	im.log.Info("products imported", slog.Int("imported", res.Imported), slog.Int("skipped", res.Skipped))
	return res, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		//BOM付きのファイルもある
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[name] = i
	}
	for _, col := range productColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", col)
		}
	}
	return index, nil
}

func parseProduct(rec []string, index map[string]int) (model.Product, error) {
	get := func(col string) (string, error) {
		i := index[col]
		if i >= len(rec) {
			return "", fmt.Errorf("column %q missing", col)
		}
		return strings.TrimSpace(rec[i]), nil
	}

	rawID, err := get("id")
	if err != nil {
		return model.Product{}, err
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return model.Product{}, fmt.Errorf("invalid id %q", rawID)
	}

	rawPrice, err := get("price")
	if err != nil {
		return model.Product{}, err
	}
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil || price < 0 {
		return model.Product{}, fmt.Errorf("invalid price %q", rawPrice)
	}

	title, err := get("title")
	if err != nil {
		return model.Product{}, err
	}
	description, err := get("description")
	if err != nil {
		return model.Product{}, err
	}
	location, err := get("location")
	if err != nil {
		return model.Product{}, err
	}

	return model.Product{
		ID:          id,
		Title:       title,
		Description: description,
		Price:       price,
		Location:    location,
	}, nil
}
