// Package badger 提供基于 BadgerDB 的存储引擎实现
//
// # 使用示例
//
//	cfg := engine.DefaultConfig("/data/dhtstore.db")
//	db, err := badger.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Put([]byte("key"), []byte("value")); err != nil {
//	    return err
//	}
//	value, err := db.Get([]byte("key"))
package badger
