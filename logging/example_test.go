package logging_test

import (
	"github.com/grovetools/hop/logging"
	"github.com/sirupsen/logrus"
)

func ExampleNewLogger() {
	log := logging.NewLogger("remote")

	log.WithFields(logrus.Fields{
		"host": "db1.example.com",
		"port": 22,
	}).Info("Running remote command")

	// Never log key material; the identity file path is enough.
	log.WithField("identity", "/keys/ops.pem").Debug("Using identity file")
}

func ExampleConfigure() {
	// Configuration via hop.yml:
	//
	// extensions:
	//   logging:
	//     level: debug
	//     file:
	//       enabled: true
	logging.Configure(logging.Config{
		Level: "debug",
		File:  logging.FileSinkConfig{Enabled: false},
	})
}
