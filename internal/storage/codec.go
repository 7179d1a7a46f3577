package storage

import (
	"encoding/json"
	"errors"

	"klados/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeFit(f model.FitRecord) ([]byte, error) {
	return json.Marshal(f)
}

func DecodeFit(data []byte) (model.FitRecord, error) {
	var fit model.FitRecord
	if err := json.Unmarshal(data, &fit); err != nil {
		return model.FitRecord{}, err
	}
	if err := checkVersion(fit.VersionedRecord); err != nil {
		return model.FitRecord{}, err
	}
	return fit, nil
}

func EncodeTree(t model.TreeRecord) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTree(data []byte) (model.TreeRecord, error) {
	var tree model.TreeRecord
	if err := json.Unmarshal(data, &tree); err != nil {
		return model.TreeRecord{}, err
	}
	if err := checkVersion(tree.VersionedRecord); err != nil {
		return model.TreeRecord{}, err
	}
	return tree, nil
}

func EncodeModelSummary(s model.ModelSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeModelSummary(data []byte) (model.ModelSummary, error) {
	var summary model.ModelSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.ModelSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.ModelSummary{}, err
	}
	return summary, nil
}

func EncodeLnLHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeLnLHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
