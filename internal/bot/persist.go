package bot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"banter/internal/chat"
	"banter/internal/logging"
)

// SaveName derives the save filename for an identity: raw platform ids
// never become filenames, only their digest does.
func SaveName(prefix, identity string) string {
	sum := sha256.Sum256([]byte(prefix + identity))
	return hex.EncodeToString(sum[:]) + ".json"
}

// instanceRecord is the on-disk form of an instance.
type instanceRecord struct {
	Identity string               `json:"identity"`
	UUID     string               `json:"uuid"`
	Prefix   string               `json:"prefix"`
	Persona  Persona              `json:"persona"`
	Messages []chat.MessageRecord `json:"messages"`
}

func (inst *Instance) savePath() string {
	return filepath.Join(inst.saveDir, SaveName(inst.prefix, inst.identity))
}

// record captures the instance for persistence. Caller holds the mutex.
func (inst *Instance) record() instanceRecord {
	msgs := inst.session.Messages()
	recs := make([]chat.MessageRecord, 0, len(msgs))
	for i := range msgs {
		recs = append(recs, msgs[i].Record())
	}
	return instanceRecord{
		Identity: inst.identity,
		UUID:     inst.uuid,
		Prefix:   inst.prefix,
		Persona:  inst.persona,
		Messages: recs,
	}
}

// save writes the instance record atomically. Caller holds the mutex.
func (inst *Instance) save() error {
	data, err := json.MarshalIndent(inst.record(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(inst.saveDir, 0o755); err != nil {
		return err
	}
	tmp := inst.savePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, inst.savePath())
}

// removeIfPresent deletes a file, treating absence as success.
func removeIfPresent(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// restore loads the save file into the instance, decoding messages through
// the media cache. Missing file: fresh start. Corrupt file or identity
// mismatch: warn and fresh start, never a crash. Individual messages that
// fail to decode are dropped, the rest of the transcript survives.
func (inst *Instance) restore() bool {
	data, err := os.ReadFile(inst.savePath())
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Bot("instance %s: unreadable save file: %v", inst.identity, err)
		}
		return false
	}

	var rec instanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		logging.Bot("instance %s: corrupt save file, starting fresh: %v", inst.identity, err)
		return false
	}
	if rec.Identity != "" && rec.Identity != inst.identity {
		logging.Bot("instance %s: save file belongs to %s, starting fresh", inst.identity, rec.Identity)
		return false
	}

	if rec.UUID != "" {
		inst.uuid = rec.UUID
	}
	if rec.Persona.Name != "" {
		inst.persona = rec.Persona
	}

	msgs := make([]chat.Message, 0, len(rec.Messages))
	for i, mr := range rec.Messages {
		msg, err := chat.FromRecord(mr, inst.cache)
		if err != nil {
			logging.Bot("instance %s: dropping message %d from save: %v", inst.identity, i, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	inst.session.Replace(msgs)
	logging.Bot("instance %s: restored %d messages", inst.identity, len(msgs))
	return true
}
