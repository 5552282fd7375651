package store

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/byjtew/libgeodesk/golerr"
)

// journal implements the pre-image copy-on-write log a Transaction
// writes to before mutating any live page, so a crash between "wrote
// journal" and "committed header" can be rolled back on the next Open
// (spec §4.B). One journal file exists per store, named "<path>.journal",
// and is deleted once a transaction commits or is rolled back cleanly.
//
// Record format, repeated to EOF: offset(u64) length(u32) data(length bytes).
// All little-endian, matching the rest of the on-disk format.
type journal struct {
	path string
	f    *os.File
}

func journalPath(storePath string) string { return storePath + ".journal" }

func createJournal(storePath string) (*journal, error) {
	p := journalPath(storePath)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, golerr.Wrap(golerr.IoError, p, err.Error())
	}
	return &journal{path: p, f: f}, nil
}

// recordPreimage durably appends the original bytes of [offset,offset+len(data))
// before a Transaction overwrites that range in the live mapping.
func (j *journal) recordPreimage(offset uint64, data []byte) error {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[0:8], offset)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(data)))
	if _, err := j.f.Write(hdr[:]); err != nil {
		return golerr.Wrap(golerr.IoError, j.path, err.Error())
	}
	if _, err := j.f.Write(data); err != nil {
		return golerr.Wrap(golerr.IoError, j.path, err.Error())
	}
	if err := j.f.Sync(); err != nil {
		return golerr.Wrap(golerr.IoError, j.path, err.Error())
	}
	return nil
}

// discard deletes the journal file; called once a transaction's changes
// are durably committed (or rolled back purely in memory, before any
// journal record was ever needed by a crash).
func (j *journal) discard() error {
	if err := j.f.Close(); err != nil {
		return golerr.Wrap(golerr.IoError, j.path, err.Error())
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return golerr.Wrap(golerr.IoError, j.path, err.Error())
	}
	return nil
}

// recoverFromCrash is called by Open before the store is mapped. It
// gates journal replay on the header checksum (spec §7: "A
// partially-committed file is detected on open by a header checksum
// mismatch and rolled back using the journal"), not on the journal
// file's mere presence: a journal can still be sitting on disk after a
// fully durable commit if the process crashed between the header force
// and journal.discard() in Transaction.Commit, and replaying it in that
// case would silently undo a successful commit. A valid header means
// any journal found is such an orphan and is removed without restoring
// anything; only an invalid header triggers an actual replay.
func recoverFromCrash(storePath string, pageSize uint32) error {
	page, err := readRawPage0(storePath, pageSize)
	if err != nil {
		return err
	}
	valid, err := headerStatus(page)
	if err != nil {
		return err
	}
	if valid {
		return discardOrphanJournal(storePath)
	}
	return replayJournal(storePath)
}

// discardOrphanJournal removes a journal file left behind by a
// transaction that had already committed durably (valid header
// checksum) by the time it crashed, without touching any live page.
func discardOrphanJournal(storePath string) error {
	p := journalPath(storePath)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return golerr.Wrap(golerr.IoError, p, err.Error())
	}
	return nil
}

// replayJournal restores every pre-image recorded by an interrupted
// transaction directly onto the backing file, fsyncs, and removes the
// journal, leaving the store exactly as it was before that transaction
// began. Only called once recoverFromCrash has confirmed the header
// checksum is actually invalid.
func replayJournal(storePath string) error {
	p := journalPath(storePath)
	jf, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return golerr.Wrap(golerr.IoError, p, err.Error())
	}
	defer jf.Close()

	store, err := os.OpenFile(storePath, os.O_RDWR, 0644)
	if err != nil {
		return golerr.Wrap(golerr.IoError, storePath, err.Error())
	}
	defer store.Close()

	var hdr [12]byte
	for {
		if _, err := io.ReadFull(jf, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return golerr.Wrap(golerr.InvalidFormat, p, "truncated journal record header")
		}
		offset := binary.LittleEndian.Uint64(hdr[0:8])
		length := binary.LittleEndian.Uint32(hdr[8:12])
		data := make([]byte, length)
		if _, err := io.ReadFull(jf, data); err != nil {
			return golerr.Wrap(golerr.InvalidFormat, p, "truncated journal record data")
		}
		if _, err := store.WriteAt(data, int64(offset)); err != nil {
			return golerr.Wrap(golerr.IoError, storePath, err.Error())
		}
	}
	if err := store.Sync(); err != nil {
		return golerr.Wrap(golerr.IoError, storePath, err.Error())
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return golerr.Wrap(golerr.IoError, p, err.Error())
	}
	return nil
}
