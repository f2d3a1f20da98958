// Package database manages the LMDB wrapper for the application.
package database

import (
	"github.com/Data-Corruption/lmdb-go/wrap"
	"github.com/Data-Corruption/stdx/xlog"
)

/*
Database Layout:

Config
	"data" -> marshaled Configuration struct
Library
	"queue" -> marshaled media record queue snapshot, front-first order
*/

const (
	ConfigDataKey   = "data"
	LibraryQueueKey = "queue"

	// DBI Names
	ConfigDBIName  = "config"
	LibraryDBIName = "library"
)

var DBINameList = []string{ConfigDBIName, LibraryDBIName}

func New(directory string, logger *xlog.Logger) (*wrap.DB, error) {
	db, srClosed, err := wrap.New(directory, DBINameList)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	logger.Infof("LMDB initialized at %s", directory)
	if srClosed > 0 {
		logger.Warnf("LMDB had %d stale readers which were closed", srClosed)
	}
	return db, nil
}
