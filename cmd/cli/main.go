// Command daogate CryptoDevs DAO 命令行客户端
package main

func main() {
	Execute()
}
