package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/evaluation"
	"github.com/crsarena/arena-eval/internal/stats"
)

// Sheet names of the spreadsheet export.
const (
	SheetTurn     = "TurnLevel"
	SheetDialogue = "DialogueLevel"
	SheetSystems  = "Systems"
)

// WriteXLSX writes r as a workbook with one sheet per level plus the
// per-system leaderboard. Insufficient estimates are left blank.
func WriteXLSX(w io.Writer, r *evaluation.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetTurn); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetDialogue); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetSystems); err != nil {
		return err
	}

	if err := writeLevelSheet(f, SheetTurn, annotation.TurnAspects(), r.Turn); err != nil {
		return err
	}
	if err := writeLevelSheet(f, SheetDialogue, annotation.DialogueAspects(), r.Dialogue); err != nil {
		return err
	}
	if r.Systems != nil {
		if err := writeSystemSheet(f, SheetSystems, r.Systems); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if idx, err := f.GetSheetIndex(SheetTurn); err == nil {
		f.SetActiveSheet(idx)
	}

	_, err := f.WriteTo(w)
	return err
}

func writeLevelSheet(f *excelize.File, sheet string, aspects []annotation.Aspect, results evaluation.Results) error {
	datasets := append(annotation.DatasetNames(), evaluation.AllDatasets)

	header := []any{"Aspect"}
	for _, ds := range datasets {
		header = append(header, ds+" pearson", ds+" spearman", ds+" pairs")
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	for i, a := range aspects {
		row := []any{string(a)}
		for _, ds := range datasets {
			c := results.Cell(a, ds)
			row = append(row, cellValue(c.Pearson), cellValue(c.Spearman), c.Pairs)
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSystemSheet(f *excelize.File, sheet string, ranking *evaluation.SystemRanking) error {
	header := []any{"System"}
	for _, a := range ranking.Aspects {
		header = append(header, string(a))
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	for i, system := range ranking.Systems {
		row := []any{system}
		for _, v := range ranking.Values[i] {
			row = append(row, cellValue(v))
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cellValue returns nil for insufficient estimates so the cell stays empty.
func cellValue(e stats.Estimate) any {
	if v, ok := e.Value(); ok {
		return v
	}
	return nil
}
