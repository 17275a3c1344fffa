package pedigree

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/kcasl/Pedigree-App/internal/model"
)

// PatchRequest はPATCH /v1/pedigree/{google_sub}のリクエストボディ。
// Compressedがtrueの場合はPayloadB64が実体であり、外側のUpserts/Deletesは
// 無視される。falseの場合は外側のフィールドをそのまま使用する。
type PatchRequest struct {
	Upserts    model.PeopleByID `json:"upserts"`
	Deletes    []string         `json:"deletes"`
	Compressed bool             `json:"compressed"`
	PayloadB64 string           `json:"payload_b64"`
}

// patchPayload は圧縮エンベロープを復元した後の中身。
type patchPayload struct {
	Upserts model.PeopleByID `json:"upserts"`
	Deletes []string         `json:"deletes"`
}

// DecodePatch はリクエストから実効的なupserts/deletesを取り出す。
//
// 圧縮エンベロープの復元はbase64デコード、gzip伸長、JSONパースの順で行い、
// どの段階の失敗も区別せず単一のInvalidPayloadとして返す。失敗の詳細を
// 呼び出し元に露出しないのは仕様であり、デバッグはログに頼る。
// 復元後のオブジェクトにupserts/deletesが無い場合は空として扱う。
func DecodePatch(req PatchRequest) (model.PeopleByID, []string, error) {
	if !req.Compressed {
		upserts := req.Upserts
		if upserts == nil {
			upserts = model.PeopleByID{}
		}
		deletes := req.Deletes
		if deletes == nil {
			deletes = []string{}
		}
		return upserts, deletes, nil
	}

	if req.PayloadB64 == "" {
		return nil, nil, model.NewInvalidPayloadError()
	}

	compressed, err := base64.StdEncoding.DecodeString(req.PayloadB64)
	if err != nil {
		return nil, nil, model.NewInvalidPayloadError()
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, nil, model.NewInvalidPayloadError()
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, nil, model.NewInvalidPayloadError()
	}

	var payload patchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, model.NewInvalidPayloadError()
	}

	upserts := payload.Upserts
	if upserts == nil {
		upserts = model.PeopleByID{}
	}
	deletes := payload.Deletes
	if deletes == nil {
		deletes = []string{}
	}
	return upserts, deletes, nil
}
