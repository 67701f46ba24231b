// keytool готовит секреты для файла профилей пользователей:
//
//	keytool genkey                    - новый ENCRYPTION_KEY
//	keytool seal -key <KEY> <secret>  - зашифровать API ключ/секрет биржи
//	keytool hash [-cost N] <auth>     - bcrypt хэш ключа бота
package main

import (
	"flag"
	"fmt"
	"os"

	"tradebot/pkg/crypto"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "genkey":
		err = genKey()
	case "seal":
		err = seal(os.Args[2:])
	case "hash":
		err = hash(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keytool genkey | seal -key KEY SECRET | hash [-cost N] AUTH")
}

func genKey() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(crypto.EncodeKey(key))
	return nil
}

func seal(args []string) error {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	rawKey := fs.String("key", os.Getenv("ENCRYPTION_KEY"), "encryption key (hex or base64)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("seal expects exactly one secret")
	}
	key, err := crypto.ParseKey(*rawKey)
	if err != nil {
		return err
	}
	if key == nil {
		return fmt.Errorf("encryption key is required (-key or ENCRYPTION_KEY)")
	}

	sealed, err := crypto.Seal(fs.Arg(0), key)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}

func hash(args []string) error {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	cost := fs.Int("cost", 0, "bcrypt cost, 0 = default")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("hash expects exactly one key")
	}
	hashed, err := crypto.HashAPIKey(fs.Arg(0), *cost)
	if err != nil {
		return err
	}
	fmt.Println(hashed)
	return nil
}
