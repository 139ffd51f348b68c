package cmd

var   Version   = "dev"
