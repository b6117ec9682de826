package ethledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/batch"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/ledger"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/schema"
)

// PublicationABI declares the event a publisher contract emits for every
// batch file it announces.
const PublicationABI = `[{
	"anonymous": false,
	"name": "DSNPBatchPublication",
	"type": "event",
	"inputs": [
		{"indexed": true,  "name": "announcementType", "type": "int16"},
		{"indexed": false, "name": "fileHash",         "type": "bytes32"},
		{"indexed": false, "name": "fileUrl",          "type": "string"}
	]
}]`

var ErrNotPublication = errors.New("log is not a batch publication")

var (
	publicationEvent = mustEvent(PublicationABI, "DSNPBatchPublication")

	// PublicationTopic is topic 0 of every publication log.
	PublicationTopic = publicationEvent.ID
)

func mustEvent(def, name string) abi.Event {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %v", name, err))
	}
	ev, ok := parsed.Events[name]
	if !ok {
		panic(fmt.Sprintf("abi has no %s event", name))
	}
	return ev
}

// Publication is the on-chain pointer to a batch file. The announcement
// type travels here rather than inside the file.
type Publication struct {
	AnnouncementType announcement.Type
	FileHash         string
	FileURL          string
}

// PublicationFor builds the pointer announcing a committed batch.
func PublicationFor(ref batch.Reference) Publication {
	return Publication{AnnouncementType: ref.Type, FileHash: ref.ContentHash, FileURL: ref.URL}
}

// DecodePublication is a ledger.Decoder for publication logs.
func DecodePublication(l ledger.Log) (Publication, error) {
	if len(l.Topics) != 2 || !strings.EqualFold(l.Topics[0], PublicationTopic.Hex()) {
		return Publication{}, ErrNotPublication
	}
	topic, err := hexutil.Decode(l.Topics[1])
	if err != nil || len(topic) != common.HashLength {
		return Publication{}, fmt.Errorf("%w: announcement type topic %q", ErrInvalidTopic, l.Topics[1])
	}
	typ := announcement.Type(int16(binary.BigEndian.Uint16(topic[common.HashLength-2:])))
	if !typ.Valid() {
		return Publication{}, fmt.Errorf("%w: %d", schema.ErrUnknownAnnouncementType, typ)
	}

	values, err := publicationEvent.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return Publication{}, fmt.Errorf("unpack publication data: %w", err)
	}
	hash, ok := values[0].([32]byte)
	if !ok {
		return Publication{}, fmt.Errorf("unpack publication data: fileHash is %T", values[0])
	}
	url, ok := values[1].(string)
	if !ok {
		return Publication{}, fmt.Errorf("unpack publication data: fileUrl is %T", values[1])
	}
	return Publication{
		AnnouncementType: typ,
		FileHash:         common.Hash(hash).Hex(),
		FileURL:          url,
	}, nil
}

// PublicationDecoder is DecodePublication as a typed decoder value.
var PublicationDecoder ledger.Decoder[Publication] = DecodePublication

// PublicationLog encodes p as the log contract would emit. Block fields
// are left zero.
func PublicationLog(contract string, p Publication) (ledger.Log, error) {
	if !common.IsHexAddress(contract) {
		return ledger.Log{}, fmt.Errorf("%w: %q", ErrInvalidAddress, contract)
	}
	hash, err := hexutil.Decode(p.FileHash)
	if err != nil || len(hash) != common.HashLength {
		return ledger.Log{}, fmt.Errorf("file hash %q is not 32 bytes of hex", p.FileHash)
	}
	data, err := publicationEvent.Inputs.NonIndexed().Pack([32]byte(hash), p.FileURL)
	if err != nil {
		return ledger.Log{}, fmt.Errorf("pack publication data: %w", err)
	}
	typeTopic, err := typeTopic(p.AnnouncementType)
	if err != nil {
		return ledger.Log{}, err
	}
	return ledger.Log{
		Address: common.HexToAddress(contract).Hex(),
		Topics:  []string{PublicationTopic.Hex(), typeTopic},
		Data:    data,
	}, nil
}

// PublicationFilter selects publications from contract, optionally of a
// single announcement type.
func PublicationFilter(contract string, typ *announcement.Type) (ledger.Filter, error) {
	if !common.IsHexAddress(contract) {
		return ledger.Filter{}, fmt.Errorf("%w: %q", ErrInvalidAddress, contract)
	}
	f := ledger.Filter{
		Addresses: []string{common.HexToAddress(contract).Hex()},
		Topics:    [][]string{{PublicationTopic.Hex()}},
	}
	if typ != nil {
		t, err := typeTopic(*typ)
		if err != nil {
			return ledger.Filter{}, err
		}
		f.Topics = append(f.Topics, []string{t})
	}
	return f, nil
}

func typeTopic(t announcement.Type) (string, error) {
	topics, err := abi.MakeTopics([]any{int16(t)})
	if err != nil {
		return "", fmt.Errorf("encode announcement type topic: %w", err)
	}
	return topics[0][0].Hex(), nil
}
